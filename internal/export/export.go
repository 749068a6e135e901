package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kassa/internal/domain"
	"kassa/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// SalesExporter строит Excel отчет по продажам магазина за период.
// Данные берутся с сервера, поэтому экспорт доступен только онлайн.
type SalesExporter struct {
	backend domain.Backend
	storeID int64
	dir     string
	logger  *zerolog.Logger
}

func NewSalesExporter(backend domain.Backend, storeID int64, dir string, logger *zerolog.Logger) *SalesExporter {
	return &SalesExporter{
		backend: backend,
		storeID: storeID,
		dir:     dir,
		logger:  logger,
	}
}

type saleRow struct {
	ID            int64
	ClientRef     string
	SoldAt        time.Time
	Total         float64
	PaymentMethod string
	CustomerID    int64
}

// ExportSales выгружает продажи за [from, to] в xlsx и возвращает путь к файлу.
func (e *SalesExporter) ExportSales(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	sales, err := e.fetchSales(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting sales: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Продажи"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// Заголовок периода
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "E1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Дата", "Чек", "Оплата", "Клиент", "Сумма"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	var total float64
	for i, sale := range sales {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), sale.SoldAt.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), sale.ClientRef)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), paymentLabel(sale.PaymentMethod))
		if sale.CustomerID != 0 {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), sale.CustomerID)
		}
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), sale.Total)
		total += sale.Total
	}

	// Итог внизу
	sumRow := len(sales) + 3
	_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", sumRow), "Итого:")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", sumRow), total)
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("D%d", sumRow), fmt.Sprintf("E%d", sumRow), boldStyle)

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "B", 38)
	_ = f.SetColWidth(sheetName, "C", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "D", 12)
	_ = f.SetColWidth(sheetName, "E", "E", 12)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("sales_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("sales", len(sales)).Msg("Excel file created")
	return filePath, nil
}

// fetchSales забирает продажи магазина и режет их по периоду на клиенте:
// серверный Select умеет только фильтры на равенство.
func (e *SalesExporter) fetchSales(ctx context.Context, from, to time.Time) ([]saleRow, error) {
	rows, err := e.backend.Select(ctx, models.TableSales, map[string]interface{}{"store_id": e.storeID})
	if err != nil {
		return nil, err
	}

	sales := make([]saleRow, 0, len(rows))
	for _, row := range rows {
		soldAt, err := parseTime(row["sold_at"])
		if err != nil {
			e.logger.Warn().Interface("sold_at", row["sold_at"]).Msg("skipping sale with unparsable date")
			continue
		}
		if soldAt.Before(from) || soldAt.After(to) {
			continue
		}

		sale := saleRow{SoldAt: soldAt}
		if v, ok := row["id"].(float64); ok {
			sale.ID = int64(v)
		}
		if v, ok := row["client_ref"].(string); ok {
			sale.ClientRef = v
		}
		if v, ok := row["total"].(float64); ok {
			sale.Total = v
		}
		if v, ok := row["payment_method"].(string); ok {
			sale.PaymentMethod = v
		}
		if v, ok := row["customer_id"].(float64); ok {
			sale.CustomerID = int64(v)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func parseTime(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("not a string: %v", v)
	}
	return time.Parse(time.RFC3339, s)
}

func paymentLabel(method string) string {
	switch method {
	case models.PaymentCash:
		return "Наличные"
	case models.PaymentCard:
		return "Карта"
	case models.PaymentMobile:
		return "Перевод"
	default:
		return method
	}
}

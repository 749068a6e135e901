package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeBackend struct {
	rows []map[string]interface{}
	err  error
}

func (b *fakeBackend) Insert(ctx context.Context, table string, values map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Update(ctx context.Context, table string, id int64, values map[string]interface{}) error {
	return errors.New("not implemented")
}

func (b *fakeBackend) Delete(ctx context.Context, table string, id int64) error {
	return errors.New("not implemented")
}

func (b *fakeBackend) Select(ctx context.Context, table string, filters map[string]interface{}) ([]map[string]interface{}, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.rows, nil
}

func (b *fakeBackend) CallRPC(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Ping(ctx context.Context) error { return nil }

func TestExportSales(t *testing.T) {
	backend := &fakeBackend{rows: []map[string]interface{}{
		{
			"id": float64(1), "client_ref": "op-1", "sold_at": "2026-08-20T10:00:00Z",
			"total": float64(120.5), "payment_method": "cash", "store_id": float64(1),
		},
		{
			"id": float64(2), "client_ref": "op-2", "sold_at": "2026-08-21T12:30:00Z",
			"total": float64(80), "payment_method": "card", "customer_id": float64(7), "store_id": float64(1),
		},
		// вне периода, в отчет не попадает
		{
			"id": float64(3), "client_ref": "op-3", "sold_at": "2026-09-05T09:00:00Z",
			"total": float64(999), "payment_method": "cash", "store_id": float64(1),
		},
	}}

	logger := zerolog.Nop()
	dir := t.TempDir()
	exporter := NewSalesExporter(backend, 1, dir, &logger)

	from := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	path, err := exporter.ExportSales(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sales_2026-08-20_to_2026-08-22.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	ref, err := f.GetCellValue("Продажи", "B3")
	require.NoError(t, err)
	assert.Equal(t, "op-1", ref)

	payment, err := f.GetCellValue("Продажи", "C4")
	require.NoError(t, err)
	assert.Equal(t, "Карта", payment)

	total, err := f.GetCellValue("Продажи", "E5")
	require.NoError(t, err)
	assert.Equal(t, "200.5", total)
}

func TestExportSalesBackendError(t *testing.T) {
	logger := zerolog.Nop()
	exporter := NewSalesExporter(&fakeBackend{err: errors.New("connection refused")}, 1, t.TempDir(), &logger)

	_, err := exporter.ExportSales(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error getting sales")
}

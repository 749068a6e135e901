package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"kassa/internal/models"
	"kassa/internal/service"
)

// handleSales принимает чек от интерфейса кассы. Ответ приходит сразу после
// записи в очередь: подтверждение сервера кассир не ждет.
func (s *HTTPServer) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req service.SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	opID, err := s.sales.RecordSale(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrUnknownProduct):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientStock):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error().Err(err).Msg("sale not accepted")
			writeError(w, http.StatusInternalServerError, "sale could not be queued")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"operation_id": opID})
}

func (s *HTTPServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products := s.catalog.Products()
		sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var product models.Product
		if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.products.CreateProduct(r.Context(), product); err != nil {
			s.writeProductError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, product)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleProductByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var product models.Product
		if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		product.ID = id
		if err := s.products.UpdateProduct(r.Context(), product); err != nil {
			s.writeProductError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, product)
	case http.MethodDelete:
		if err := s.products.DeleteProduct(r.Context(), id); err != nil {
			s.writeProductError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int64{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) writeProductError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrMissingProductID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg("product change not accepted")
	writeError(w, http.StatusInternalServerError, "change could not be queued")
}

// handleExportSales строит отчет за период ?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Работает только онлайн: данные берутся с сервера.
func (s *HTTPServer) handleExportSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are not configured")
		return
	}
	if !s.engine.IsOnline() {
		writeError(w, http.StatusServiceUnavailable, "export requires a connection")
		return
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}
	// Включаем весь последний день
	to = to.Add(24*time.Hour - time.Nanosecond)

	path, err := s.exporter.ExportSales(r.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("sales export failed")
		writeError(w, http.StatusBadGateway, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"file_path": path})
}

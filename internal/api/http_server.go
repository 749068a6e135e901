package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kassa/internal/cache"
	"kassa/internal/domain"
	"kassa/internal/export"
	"kassa/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer is the local surface the register UI talks to. It binds to
// localhost in practice; there is no auth layer because nothing but the
// terminal's own UI reaches it.
type HTTPServer struct {
	engine   domain.SyncEngine
	sales    *service.SaleService
	products *service.ProductService
	catalog  *cache.ProductCache
	exporter *export.SalesExporter
	server   *http.Server
	logger   *zerolog.Logger
}

// Deps carries the wired services. Exporter may be nil when exports are
// disabled.
type Deps struct {
	Engine   domain.SyncEngine
	Sales    *service.SaleService
	Products *service.ProductService
	Catalog  *cache.ProductCache
	Exporter *export.SalesExporter
}

func NewHTTPServer(port int, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		engine:   deps.Engine,
		sales:    deps.Sales,
		products: deps.Products,
		catalog:  deps.Catalog,
		exporter: deps.Exporter,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", srv.handleStatus)
	mux.HandleFunc("/api/v1/sales", srv.handleSales)
	mux.HandleFunc("/api/v1/products", srv.handleProducts)
	mux.HandleFunc("/api/v1/products/", srv.handleProductByID)
	mux.HandleFunc("/api/v1/exports/sales", srv.handleExportSales)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("local API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status(r.Context()))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

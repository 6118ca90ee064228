package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/avolkov/pipewatch/internal/alert"
	"github.com/avolkov/pipewatch/internal/cache"
	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/ingest"
	"github.com/avolkov/pipewatch/internal/ws"
	"github.com/avolkov/pipewatch/pkg/config"
)

// Store is the query surface the HTTP layer reads through.
type Store interface {
	QueryReadings(ctx context.Context, filter database.ReadingFilter, limit, offset int) ([]database.Reading, error)
	CountReadings(ctx context.Context, filter database.ReadingFilter) (int, error)
	StreamReadings(ctx context.Context, fn func(database.Reading) error) error
	ListSensors(ctx context.Context) ([]string, error)
	GetExtremes(ctx context.Context, filter database.ReadingFilter) (database.Extremes, error)
}

// Ingestor processes one CSV upload.
type Ingestor interface {
	Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error)
}

// Server wires the HTTP surface: upload, queries, export and the alert
// WebSocket.
type Server struct {
	store     Store
	pipeline  Ingestor
	evaluator *alert.Evaluator
	hub       *ws.Hub
	cache     *cache.Cache
	cfg       *config.HTTPConfig
	http      *http.Server
}

// NewServer creates the HTTP server. cache may be nil to disable
// check-alert caching.
func NewServer(store Store, pipeline Ingestor, evaluator *alert.Evaluator, hub *ws.Hub, c *cache.Cache, cfg *config.HTTPConfig) *Server {
	s := &Server{
		store:     store,
		pipeline:  pipeline,
		evaluator: evaluator,
		hub:       hub,
		cache:     c,
		cfg:       cfg,
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: the CSV export streams and ws-alert is
		// long-lived.
	}
	return s
}

// Router builds the route table with CORS and request logging applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/upload-csv", s.handleUploadCSV).Methods(http.MethodPost)
	r.HandleFunc("/data/by-date", s.handleDataByDate).Methods(http.MethodGet)
	r.HandleFunc("/data/by-page", s.handleDataByPage).Methods(http.MethodGet)
	r.HandleFunc("/data/csv", s.handleExportCSV).Methods(http.MethodGet)
	r.HandleFunc("/data/sensors", s.handleSensors).Methods(http.MethodGet)
	r.HandleFunc("/data/extremes", s.handleExtremes).Methods(http.MethodGet)
	r.HandleFunc("/check-alert", s.handleCheckAlert).Methods(http.MethodGet)
	r.HandleFunc("/ws-alert", s.handleAlertSocket)

	var handler http.Handler = r
	handler = corsMiddleware(s.cfg.CORSOrigin, handler)
	handler = loggingMiddleware(handler)
	return handler
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes all alert subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.http.Shutdown(ctx)
}

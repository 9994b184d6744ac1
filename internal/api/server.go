package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"analytics-engine/internal/config"
	"analytics-engine/internal/metrics"
	"analytics-engine/internal/models"
	"analytics-engine/internal/report"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	headerTenantID  = "X-Tenant-Id"
	headerRequestID = "X-Request-Id"

	defaultRecentReports = 10
	maxRecentReports     = 50
)

// ReportService builds reports and raw exports for one tenant.
type ReportService interface {
	Build(ctx context.Context, req report.Request) (*models.Report, error)
	Dataset(ctx context.Context, tenantID string, from, to time.Time) (models.Dataset, error)
}

// ReportHistory lists archived reports.
type ReportHistory interface {
	RecentReports(ctx context.Context, tenantID string, count int64) ([]models.ArchivedReport, error)
}

type Options struct {
	DefaultRange time.Duration
	Version      string
	// Checks are run by /health; a failing check marks the service degraded.
	Checks map[string]func(ctx context.Context) error
	Now    func() time.Time
}

type Server struct {
	router  *mux.Router
	reports ReportService
	history ReportHistory
	opts    Options
	logger  *zap.Logger
}

func NewServer(reports ReportService, history ReportHistory, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultRange <= 0 {
		opts.DefaultRange = 30 * 24 * time.Hour
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		router:  mux.NewRouter(),
		reports: reports,
		history: history,
		opts:    opts,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.instrument)

	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/advanced", s.advancedHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/export", s.exportHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/reports/recent", s.recentReportsHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

// Handler returns the router wrapped with panic recovery and compression.
func (s *Server) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(handlers.CompressHandler(s.router))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := make(map[string]string, len(s.opts.Checks))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": s.opts.Now().UTC(),
		"version":   s.opts.Version,
		"checks":    checks,
	})
}

func (s *Server) advancedHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	metric, ok := models.ParseMetric(q.Get("metric"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "metric must be one of events, alerts, performance, security"})
		return
	}

	from, to, err := parseRange(q.Get("from"), q.Get("to"), s.opts.Now(), s.opts.DefaultRange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, err := s.reports.Build(r.Context(), report.Request{
		TenantID:  r.Header.Get(headerTenantID),
		From:      from,
		To:        to,
		Metric:    metric,
		RequestID: requestIDFrom(r.Context()),
	})
	if err != nil {
		metrics.ReportFailures.WithLabelValues(report.Kind(err)).Inc()
		s.writeError(w, r, err)
		return
	}

	metrics.ReportsBuilt.WithLabelValues(string(metric)).Inc()
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) recentReportsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(headerTenantID)
	if _, err := uuid.Parse(tenantID); err != nil {
		s.writeError(w, r, report.ErrUnauthorized)
		return
	}

	limit := int64(defaultRecentReports)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentReports)
	}

	reports, err := s.history.RecentReports(r.Context(), tenantID, limit)
	if err != nil {
		s.logger.Error("failed to list recent reports",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch report history"})
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is canceled, then drains in-flight requests for up
// to cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server is ready to handle requests", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on %s: %w", cfg.Addr, err)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Package apiserver exposes the investigation engine over HTTP: webhook
// ingestion, report retrieval, health, and metrics.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moolen/inquest/internal/engine"
	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/logging"
	"github.com/moolen/inquest/internal/models"
)

// Server handles HTTP API requests.
type Server struct {
	port      int
	engine    *engine.Engine
	knowledge *kb.Holder
	store     *ReportStore
	logger    *logging.Logger
	router    *http.ServeMux
	server    *http.Server
}

// New creates an API server over the given engine and knowledge holder.
func New(port int, eng *engine.Engine, knowledge *kb.Holder, store *ReportStore) *Server {
	s := &Server{
		port:      port,
		engine:    eng,
		knowledge: knowledge,
		store:     store,
		logger:    logging.GetLogger("api"),
		router:    http.NewServeMux(),
	}
	s.registerHandlers()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
		// Investigation runs block the webhook request until the report is
		// ready, so the write timeout must cover a full run.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/webhook", s.handleWebhook)
	s.router.HandleFunc("/reports/", s.handleGetReport)
	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start begins listening for requests.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()
	s.logger.Info("API server started and listening on port %d", s.port)
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error: %v", err)
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleWebhook ingests one alert webhook, runs the investigation
// synchronously, stores the report, and returns it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}

	report, err := s.engine.Investigate(r.Context(), s.knowledge.Current(), payload)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("investigation failed (%d): %v", status, err)
		writeError(w, status, err.Error())
		return
	}

	s.store.Put(report)
	writeJSON(w, http.StatusOK, report)
}

// handleGetReport returns a stored report by run id.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/reports/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	report, ok := s.store.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// statusFor maps the engine's fatal error classes onto HTTP statuses.
// Anything unclassified is an internal error.
func statusFor(err error) int {
	switch {
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case kb.IsSubjectNotFound(err):
		return http.StatusNotFound
	case kb.IsMalformedSlice(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message, "status": status})
}

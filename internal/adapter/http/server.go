package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/notes"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/pipeline"
)

// Controller is the part of the load controller the server exposes.
type Controller interface {
	sharedobs.ReadinessChecker
	Status() pipeline.Status
	Load(ctx context.Context, force bool) error
	ClearCache(ctx context.Context)
}

// NotesSource provides the current notes page.
type NotesSource interface {
	Current() notes.Page
}

// Server exposes probes, metrics and a small status and control API.
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	notes      NotesSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /status, /notes, /refresh and /cache routes.
func NewServer(addr string, ctrl Controller, notesSrc NotesSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ctrl:   ctrl,
		notes:  notesSrc,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ctrl))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /notes", s.handleNotes)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /cache", s.handleClearCache)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

type notesResponse struct {
	Items      []domain.IncidentRecord `json:"items"`
	Separators []notes.Separator       `json:"separators"`
	Total      int                     `json:"total"`
	Remaining  int                     `json:"remaining"`
	NextLoad   int                     `json:"next_load"`
	Frozen     bool                    `json:"frozen"`
}

func (s *Server) handleNotes(w http.ResponseWriter, _ *http.Request) {
	page := s.notes.Current()
	items := page.Items
	if items == nil {
		items = []domain.IncidentRecord{}
	}
	writeJSON(w, http.StatusOK, notesResponse{
		Items:      items,
		Separators: page.Separators,
		Total:      page.Total,
		Remaining:  page.Remaining,
		NextLoad:   page.NextLoad,
		Frozen:     page.Frozen,
	})
}

// handleRefresh starts a forced load and returns without waiting for it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := s.ctrl.Load(ctx, true); err != nil {
			s.logger.Warn("refresh failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

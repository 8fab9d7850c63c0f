// Package api exposes the search subsystem over HTTP: a tenant-scoped search
// endpoint, an explicit reindex maintenance operation, and the usual health
// and metrics surfaces.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperdex/paperdex/internal/engine"
	perrors "github.com/paperdex/paperdex/internal/errors"
	"github.com/paperdex/paperdex/internal/index"
	"github.com/paperdex/paperdex/internal/search"
)

// Server wires the search service and index manager into an HTTP handler.
type Server struct {
	service *search.Service
	manager *index.Manager
	engine  *engine.Index
	logger  *slog.Logger
	metrics *Metrics
	router  chi.Router
}

// NewServer builds the HTTP surface. An empty apiKeys slice disables auth.
func NewServer(svc *search.Service, mgr *index.Manager, eng *engine.Index, logger *slog.Logger, apiKeys []string) *Server {
	s := &Server{
		service: svc,
		manager: mgr,
		engine:  eng,
		logger:  logger,
		metrics: NewMetrics(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger, s.metrics))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		s.metrics.Registry(), promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKeys))
		r.Post("/api/search", s.handleSearch)
		r.Post("/api/reindex", s.handleReindex)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.searchesTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, search.Response{
			Success: false,
			Results: []search.Result{},
			Error:   "invalid request body",
		})
		return
	}

	resp := s.service.Search(r.Context(), req)
	if resp.Success {
		s.metrics.searchesTotal.WithLabelValues("ok").Inc()
	} else {
		s.metrics.searchesTotal.WithLabelValues("failed").Inc()
	}
	// Engine failures still answer 200 with a well-formed envelope; the
	// Error field distinguishes an outage from an empty result set.
	writeJSON(w, http.StatusOK, resp)
}

type reindexResponse struct {
	Success  bool   `json:"success"`
	Indexed  int    `json:"indexed"`
	Skipped  int    `json:"skipped"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Rebuild(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if perrors.GetCode(err) == perrors.ErrCodeRebuildBusy {
			status = http.StatusConflict
		}
		writeJSON(w, status, reindexResponse{Success: false, Error: err.Error()})
		return
	}

	s.service.InvalidateCache()
	s.metrics.rebuildsTotal.Inc()
	s.metrics.indexedRecords.Set(float64(stats.Indexed))

	writeJSON(w, http.StatusOK, reindexResponse{
		Success:  true,
		Indexed:  stats.Indexed,
		Skipped:  stats.Skipped,
		Duration: stats.Duration.String(),
	})
}

type healthResponse struct {
	Status     string `json:"status"`
	Documents  int    `json:"documents"`
	Rebuilding bool   `json:"rebuilding"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Documents:  count,
		Rebuilding: s.manager.Rebuilding(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

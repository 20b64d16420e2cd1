package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ContourService is the read side of the pipeline used by the handlers.
type ContourService interface {
	CheckReadiness(ctx context.Context) error
	State() pipeline.State
	Lookup(year, horizon, parameter string) (pipeline.Lookup, error)
	Sets() []*domain.ContourSet
}

// Server exposes the contour lookup API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	service    ContourService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 lookup routes and the
// /healthz, /readyz, and /metrics routes.
func NewServer(addr string, service ContourService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      accessLog(logger, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	mux.HandleFunc("GET /v1/contours/{year}/{horizon}/{parameter}", s.handleContourPath)
	mux.HandleFunc("GET /v1/contours", s.handleContourQuery)
	mux.HandleFunc("GET /v1/keys", s.handleKeys)
	mux.HandleFunc("GET /v1/parameters", s.handleParameters)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleContourPath(w http.ResponseWriter, r *http.Request) {
	s.lookup(w, r.PathValue("year"), r.PathValue("horizon"), r.PathValue("parameter"))
}

func (s *Server) handleContourQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.lookup(w, q.Get("year"), q.Get("horizon"), q.Get("parameter"))
}

func (s *Server) lookup(w http.ResponseWriter, year, horizon, parameter string) {
	res, err := s.service.Lookup(year, horizon, parameter)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		s.logger.Error("lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	switch res.Status {
	case pipeline.StatusNotReady:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "not ready"})
	case pipeline.StatusNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		body, err := res.Set.MarshalGeoJSON()
		if err != nil {
			s.logger.Error("encode contour set", "key", res.Key.String(), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("X-Contour-Status", string(res.Set.Status))
		w.WriteHeader(http.StatusOK)
		w.Write(body) //nolint:errcheck // client went away
	}
}

type keySummary struct {
	Key        string           `json:"key"`
	Year       int              `json:"year"`
	Horizon    string           `json:"horizon"`
	Parameter  string           `json:"parameter"`
	Status     domain.SetStatus `json:"status"`
	PointCount int              `json:"point_count"`
	Lines      int              `json:"lines"`
	ComputedAt time.Time        `json:"computed_at"`
}

func (s *Server) handleKeys(w http.ResponseWriter, _ *http.Request) {
	sets := s.service.Sets()
	keys := make([]keySummary, 0, len(sets))
	for _, set := range sets {
		keys = append(keys, keySummary{
			Key:        set.Key.String(),
			Year:       set.Key.Year,
			Horizon:    set.Key.Horizon.String(),
			Parameter:  set.Key.Parameter.String(),
			Status:     set.Status,
			PointCount: set.PointCount,
			Lines:      len(set.Lines),
			ComputedAt: set.ComputedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.service.State().String(),
		"keys":  keys,
	})
}

type parameterInfo struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

func (s *Server) handleParameters(w http.ResponseWriter, _ *http.Request) {
	params := make([]parameterInfo, 0, len(domain.Parameters()))
	for _, p := range domain.Parameters() {
		params = append(params, parameterInfo{Name: p.String(), Unit: p.Unit()})
	}
	horizons := make([]string, 0, len(domain.Horizons()))
	for _, h := range domain.Horizons() {
		horizons = append(horizons, h.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parameters": params,
		"horizons":   horizons,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	state := s.service.State().String()
	if err := s.service.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"state":  state,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "state": state})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

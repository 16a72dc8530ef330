// Package api exposes the HTTP interface for the membership service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/engine"
)

const requestTimeout = 30 * time.Second

// Engine is the membership surface the handlers call into.
type Engine interface {
	IsMember(ctx context.Context, ref string) bool
	BulkCheck(ctx context.Context, refs []string) engine.BatchResult
	CachedStatus(id string) (bool, bool)
	Invalidate(ctx context.Context, ref string) bool
	Refresh(ctx context.Context, force bool) engine.RefreshResult
	DebugResolve(ctx context.Context, ref string) engine.DebugReport
	IndexStale() bool
	Syncing() bool
}

// Server wires HTTP handlers to the engine.
type Server struct {
	router chi.Router
	engine Engine
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(eng Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: eng, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/channels", func(r chi.Router) {
			r.Post("/bulk", s.bulkCheck)
			r.Post("/check", s.checkOne)
			r.Get("/{channel_id}/cached", s.cachedStatus)
		})
		r.Post("/subscriptions/refresh", s.refresh)
		r.Post("/references/invalidate", s.invalidate)
		r.Get("/debug/resolve", s.debugResolve)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The engine answers from local state even mid-sync, so readiness only
	// reflects that the process is serving.
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"index_stale": s.engine.IndexStale(),
		"syncing":     s.engine.Syncing(),
	})
}

type bulkRequest struct {
	Refs []string `json:"refs"`
}

type checkRequest struct {
	Ref string `json:"ref"`
}

type checkResponse struct {
	Ref        string `json:"ref"`
	Subscribed bool   `json:"subscribed"`
}

type cachedResponse struct {
	ChannelID string `json:"channel_id"`
	Known     bool   `json:"known"`
	Status    *bool  `json:"status,omitempty"`
}

type refreshRequest struct {
	Force bool `json:"force"`
}

type invalidateResponse struct {
	Invalidated bool `json:"ok"`
}

func (s *Server) bulkCheck(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Refs) == 0 {
		writeError(w, http.StatusBadRequest, "refs required")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.BulkCheck(r.Context(), req.Refs))
}

func (s *Server) checkOne(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		writeError(w, http.StatusBadRequest, "ref required")
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Ref:        req.Ref,
		Subscribed: s.engine.IsMember(r.Context(), req.Ref),
	})
}

func (s *Server) cachedStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channel_id")
	if !channel.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	status, known := s.engine.CachedStatus(id)
	resp := cachedResponse{ChannelID: id, Known: known}
	if known {
		resp.Status = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional
	force := req.Force || r.URL.Query().Get("force") == "true"
	res := s.engine.Refresh(r.Context(), force)
	status := http.StatusOK
	if !res.Ran {
		// Refresh was skipped: already syncing, still fresh, or no credential.
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		writeError(w, http.StatusBadRequest, "ref required")
		return
	}
	writeJSON(w, http.StatusOK, invalidateResponse{
		Invalidated: s.engine.Invalidate(r.Context(), req.Ref),
	})
}

func (s *Server) debugResolve(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "ref query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.DebugResolve(r.Context(), ref))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package api provides the HTTP API of the planner.
// GET endpoints are public and read the cached state.
// POST endpoints require a bearer token and change the session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/session"
)

// Server serves the planner over HTTP.
type Server struct {
	Planner  *engine.Planner
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// SolvesPerMinute limits POST /api/v1/solve per client. 0 = unlimited.
	SolvesPerMinute int

	httpServer *http.Server
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	solveLimiter := NewRateLimiter(s.SolvesPerMinute, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/schedule", s.handleSchedule)
	mux.HandleFunc("GET /api/v1/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/solve", s.adminOnly(RateLimitMiddleware(solveLimiter, s.handleSolve)))
	mux.HandleFunc("POST /api/v1/commit", s.adminOnly(s.handleCommit))
	mux.HandleFunc("POST /api/v1/hint", s.adminOnly(s.handleHint))
	mux.HandleFunc("POST /api/v1/stub", s.adminOnly(s.handleStub))
	mux.HandleFunc("POST /api/v1/cycle", s.adminOnly(s.handleCycle))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORKSHOP_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Planner.Status())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"days": s.Planner.Present(s.Planner.Schedule()),
	})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"totals":    s.Planner.Status().Totals,
		"summaries": s.Planner.Summaries(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events, err := s.Planner.Events(limit)
	if err != nil {
		slog.Error("events query failed", "error", err)
		http.Error(w, "events unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	days, err := s.Planner.Solve(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"days": s.Planner.Present(days),
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day  int    `json:"day"`
		Key  string `json:"key,omitempty"`
		Rank int    `json:"rank,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		if req.Rank == 0 {
			http.Error(w, "key or rank is required", http.StatusBadRequest)
			return
		}
		sc, err := s.Planner.Suggestion(req.Day, req.Rank)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Key = sc.Key
	}
	sum, err := s.Planner.Commit(req.Day, req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item   string `json:"item"`
		Strong bool   `json:"strong"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Planner.Hint(req.Item, req.Strong); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"pending_hints": s.Planner.Status().Pending,
	})
}

func (s *Server) handleStub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day    int     `json:"day"`
		Groove int     `json:"groove"`
		Value  float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Groove < 0 || req.Value < 0 {
		http.Error(w, "groove and value must not be negative", http.StatusBadRequest)
		return
	}
	sum, err := s.Planner.Stub(req.Day, req.Groove, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.Planner.NextCycle(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.Planner.Status())
}

// statusFor maps planner errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidCommitment),
		errors.Is(err, session.ErrCycleComplete),
		errors.Is(err, session.ErrCycleOpen),
		errors.Is(err, session.ErrOverwriteDisabled):
		return http.StatusConflict
	case errors.Is(err, session.ErrDayOutOfRange),
		errors.Is(err, session.ErrUnknownItem),
		errors.Is(err, engine.ErrNoSuggestion):
		return http.StatusBadRequest
	case errors.Is(err, combo.ErrSearchTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, market.ErrNoMarketData):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

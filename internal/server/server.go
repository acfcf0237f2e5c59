// Package server exposes the retrieval engine over HTTP: POST /search for
// queries, plus health, readiness, and stats endpoints for operators and the
// generation consumer's probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mohik-agnext/docker-chatbot/internal/config"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/retrieval"
)

// Server is the HTTP surface over one orchestrator.
type Server struct {
	cfg  *config.Config
	orch *retrieval.Orchestrator
	log  *slog.Logger
	http *http.Server
}

// New creates the server.
func New(cfg *config.Config, orch *retrieval.Orchestrator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, orch: orch, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /stats", s.handleStats)

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:           s.withLogging(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe serves until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)))
	})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Retryable = retryable
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req retrieval.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, rerrors.ErrCodeConfigInvalid,
			"invalid request body: "+err.Error(), false)
		return
	}

	resp, err := s.orch.Retrieve(r.Context(), req)
	if err != nil {
		s.writeRetrievalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Response: resp,
		TookMS:   resp.Took.Milliseconds(),
	})
}

// searchResponse flattens Took into integer milliseconds on the wire.
type searchResponse struct {
	*retrieval.Response
	TookMS int64 `json:"took_ms"`
}

func (s *Server) writeRetrievalError(w http.ResponseWriter, err error) {
	code := rerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case rerrors.ErrCodeNotReady:
		w.Header().Set("Retry-After", "1")
		status = http.StatusServiceUnavailable
	case rerrors.ErrCodeScopeSelection:
		status = http.StatusBadRequest
	}
	s.log.Error("search failed", slog.String("code", code), slog.String("error", err.Error()))
	s.writeError(w, status, code, err.Error(), rerrors.IsRetryable(err))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.orch.Ready() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "warming_up"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, rerrors.GetCode(err), err.Error(), false)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

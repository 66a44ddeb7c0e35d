// Package server implements the HTTP API in front of the conversation
// orchestrator: chat, session reset, model listing, health and readiness
// probes, and Prometheus metrics. The server is started by the
// `docschat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docschat/docschat-go/internal/chat"
	"github.com/docschat/docschat-go/internal/logging"
)

// New constructs a Server from the orchestrator, session store, and config.
func New(orch *chat.Orchestrator, sessions *chat.Store, listModels modelLister, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server: session store must not be nil")
	}
	return newServer(orch, sessions, listModels, cfg)
}

// newServer is the interface-typed constructor shared with tests.
func newServer(c chatter, sessions sessionResetter, listModels modelLister, cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full chat exchange including tool cycles.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 4 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		reg := prometheus.NewRegistry()
		cfg.MetricsRegistry = reg
		cfg.MetricsGatherer = reg
	}

	s := &Server{
		chatter:    c,
		sessions:   sessions,
		listModels: listModels,
		cfg:        cfg,
		log:        cfg.Logger,
		pingers:    cfg.Pingers,
		metrics:    newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stop

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: DOCSCHAT_API_KEY not set, API authentication disabled")
	}
	protect := func(h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect(s.instrument("chat", http.HandlerFunc(s.handleChat))))
	mux.Handle("POST /api/reset", protect(s.instrument("reset", http.HandlerFunc(s.handleReset))))
	mux.Handle("GET /api/models", protect(s.instrument("models", http.HandlerFunc(s.handleModels))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	if cfg.MetricsGatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, corsMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat. It runs one full conversation exchange
// and returns the final answer as JSON.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.chatter.Respond(ctx, chat.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		Model:     req.Model,
	})
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		logging.FromContext(r.Context()).Error("chat exchange failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		status := http.StatusBadGateway
		if outcome == "timeout" {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "chat backend error")
		return
	}
	s.metrics.chatToolCyclesTotal.Add(float64(resp.ToolCycles))

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  resp.Answer,
		SessionID: resp.SessionID,
	})
}

// handleReset handles POST /api/reset. With a session_id it discards that
// conversation; without one it discards every live session. An empty body is
// treated the same as an empty session_id.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	// An empty body means "reset everything"; malformed JSON is rejected.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n := 0
	if req.SessionID != "" {
		if s.sessions.Reset(req.SessionID) {
			n = 1
		}
	} else {
		n = s.sessions.ResetAll()
	}

	logging.FromContext(r.Context()).Info("sessions reset",
		slog.String("session_id", req.SessionID),
		slog.Int("count", n),
	)
	writeJSON(w, http.StatusOK, resetResponse{Reset: n})
}

// handleModels handles GET /api/models, listing the models available on the
// configured backend.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.listModels == nil {
		writeJSON(w, http.StatusOK, modelsResponse{Models: []string{}})
		return
	}
	names, err := s.listModels(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("model listing failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "model listing failed")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: names})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docschat/docschat-go/internal/chat"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ChatTimeout bounds a single /api/chat exchange end to end.
	ChatTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all server metrics. Defaults to a fresh
	// registry so tests stay hermetic; production passes a shared one.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Must gather from MetricsRegistry.
	MetricsGatherer prometheus.Gatherer
}

// chatter is the interface handleChat calls to run one conversation exchange.
// *chat.Orchestrator satisfies it; tests inject a fake.
type chatter interface {
	Respond(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// sessionResetter is the interface handleReset calls to discard sessions.
// *chat.Store satisfies it.
type sessionResetter interface {
	Reset(id string) bool
	ResetAll() int
}

// modelLister is the interface handleModels calls to enumerate available
// model names on the configured backend.
type modelLister func(ctx context.Context) ([]string, error)

// Server is the HTTP server that fronts the conversation orchestrator.
type Server struct {
	// chatter runs chat exchanges; set to the orchestrator in production,
	// overridden by a fake in tests.
	chatter chatter
	// sessions discards conversation state for POST /api/reset.
	sessions sessionResetter
	// listModels enumerates backend models for GET /api/models.
	listModels modelLister
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// SessionID selects an existing conversation; empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	// Model optionally overrides the default backend model for this request.
	Model string `json:"model,omitempty"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Response is the assistant's final answer.
	Response string `json:"response"`
	// SessionID identifies the conversation the answer belongs to.
	SessionID string `json:"session_id"`
}

// resetRequest is the JSON body for POST /api/reset.
type resetRequest struct {
	// SessionID selects the conversation to discard; empty discards all.
	SessionID string `json:"session_id,omitempty"`
}

// resetResponse is the JSON response for POST /api/reset.
type resetResponse struct {
	// Reset is how many sessions were discarded.
	Reset int `json:"reset"`
}

// modelsResponse is the JSON response for GET /api/models.
type modelsResponse struct {
	// Models lists the model names available on the configured backend.
	Models []string `json:"models"`
}

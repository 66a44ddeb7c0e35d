package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docschat/docschat-go/internal/chat"
)

// ---------------------------------------------------------------------------
// Fakes for chat handler tests
// ---------------------------------------------------------------------------

// fakeChatter implements the chatter interface for tests.
type fakeChatter struct {
	// resp is returned on success.
	resp *chat.Response
	// err is returned as the error value.
	err error
	// lastReq records the most recent request for assertions.
	lastReq chat.Request
}

func (f *fakeChatter) Respond(_ context.Context, req chat.Request) (*chat.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeResetter implements sessionResetter with canned results.
type fakeResetter struct {
	known    map[string]bool
	allCount int
	lastID   string
}

func (f *fakeResetter) Reset(id string) bool {
	f.lastID = id
	return f.known[id]
}

func (f *fakeResetter) ResetAll() int { return f.allCount }

// newTestServer builds a *Server with fakes and an isolated metrics registry.
func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		chatter:  &fakeChatter{resp: &chat.Response{Answer: "ok", SessionID: "s"}},
		sessions: &fakeResetter{},
		cfg: &Config{
			Port:            8080,
			ChatTimeout:     time.Minute,
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		log:     slog.Default(),
		metrics: newServerMetrics(reg),
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — validation error paths
// ---------------------------------------------------------------------------

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"session_id":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — happy path
// ---------------------------------------------------------------------------

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	fc := &fakeChatter{resp: &chat.Response{
		Answer:    "the documented default is 30 seconds",
		SessionID: "sess-1",
	}}
	s := newTestServer()
	s.chatter = fc

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"what is the default timeout?","session_id":"sess-1","model":"mistral-small-latest"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "the documented default is 30 seconds" {
		t.Errorf("Response = %q", resp.Response)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}

	if fc.lastReq.Message != "what is the default timeout?" {
		t.Errorf("orchestrator saw message %q", fc.lastReq.Message)
	}
	if fc.lastReq.Model != "mistral-small-latest" {
		t.Errorf("orchestrator saw model %q", fc.lastReq.Model)
	}
}

func TestHandleChat_MintsSessionID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{resp: &chat.Response{Answer: "hi", SessionID: "minted-id"}}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "minted-id" {
		t.Errorf("SessionID = %q, want the minted id returned by the orchestrator", resp.SessionID)
	}
}

// TestHandleChat_BackendError verifies that an orchestrator failure maps to
// 502 with a JSON error body.
func TestHandleChat_BackendError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{err: errors.New("model unavailable")}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected a JSON error body")
	}
}

func TestHandleChat_Timeout(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{err: context.DeadlineExceeded}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/reset
// ---------------------------------------------------------------------------

func TestHandleReset_SingleSession(t *testing.T) {
	t.Parallel()

	fr := &fakeResetter{known: map[string]bool{"sess-1": true}}
	s := newTestServer()
	s.sessions = fr

	req := httptest.NewRequest(http.MethodPost, "/api/reset",
		strings.NewReader(`{"session_id":"sess-1"}`))
	w := httptest.NewRecorder()

	s.handleReset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp resetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reset != 1 {
		t.Errorf("Reset = %d, want 1", resp.Reset)
	}
	if fr.lastID != "sess-1" {
		t.Errorf("resetter saw id %q", fr.lastID)
	}
}

func TestHandleReset_UnknownSession(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.sessions = &fakeResetter{known: map[string]bool{}}

	req := httptest.NewRequest(http.MethodPost, "/api/reset",
		strings.NewReader(`{"session_id":"missing"}`))
	w := httptest.NewRecorder()

	s.handleReset(w, req)

	var resp resetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reset != 0 {
		t.Errorf("Reset = %d, want 0 for an unknown session", resp.Reset)
	}
}

func TestHandleReset_AllSessions(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.sessions = &fakeResetter{allCount: 3}

	// Empty body resets everything.
	req := httptest.NewRequest(http.MethodPost, "/api/reset", strings.NewReader(""))
	w := httptest.NewRecorder()

	s.handleReset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp resetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reset != 3 {
		t.Errorf("Reset = %d, want 3", resp.Reset)
	}
}

func TestHandleReset_MalformedBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/reset", strings.NewReader(`{bad`))
	w := httptest.NewRecorder()

	s.handleReset(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/models
// ---------------------------------------------------------------------------

func TestHandleModels_ListsBackendModels(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.listModels = func(context.Context) ([]string, error) {
		return []string{"mistral-large-latest", "mistral-small-latest"}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()

	s.handleModels(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp modelsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Models) != 2 || resp.Models[0] != "mistral-large-latest" {
		t.Errorf("Models = %v", resp.Models)
	}
}

func TestHandleModels_BackendFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.listModels = func(context.Context) ([]string, error) {
		return nil, errors.New("connection refused")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()

	s.handleModels(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestHandleModels_NoLister(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.listModels = nil

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()

	s.handleModels(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp modelsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Models == nil {
		t.Error("Models should encode as an empty array, not null")
	}
}

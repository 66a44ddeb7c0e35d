package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docschat/docschat-go/internal/budget"
	"github.com/docschat/docschat-go/internal/logging"
	"github.com/docschat/docschat-go/internal/tools"
)

// systemPrompt grounds every conversation. It tells the model what it is for
// and when to reach for the documentation search tool.
const systemPrompt = `You are DocsChat, an assistant that answers questions about a product's
official documentation.

When a question may depend on documented behavior, call the
search_documentation tool with the user's question before answering, and base
your answer on the passages it returns. Quote or paraphrase the documentation
rather than inventing behavior. If the documentation does not cover the
question, say so plainly.

Answer concisely and in the language the user asked in.`

// TranscriptStore persists committed turns. Implementations must tolerate
// concurrent appends for different sessions.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID, role, content string) error
}

// ModelResolver maps a requested model name to a chat model. An empty name
// selects the default backend.
type ModelResolver func(name string) (model.ToolCallingChatModel, error)

// Config holds the dependencies required to construct an Orchestrator.
type Config struct {
	// Model is the default chat model backend.
	Model model.ToolCallingChatModel

	// Resolve optionally maps per-request model names to backends. When nil,
	// requests naming a model are rejected.
	Resolve ModelResolver

	// Tools is the tool registry offered to the model. May be nil for a
	// plain chat backend with no retrieval.
	Tools *tools.Registry

	// Sessions is the live session store. Required.
	Sessions *Store

	// Transcripts optionally persists committed turns. Append failures are
	// logged, never fatal.
	Transcripts TranscriptStore

	// MaxContextTokens is the estimated input budget; committed history is
	// trimmed oldest-first to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Orchestrator drives one exchange at a time per session: user message in,
// at most one tool exchange, final assistant answer out. An exchange commits
// exactly two turns to the session, the user message and the final answer, and
// commits nothing at all if any step fails.
type Orchestrator struct {
	defaultModel model.ToolCallingChatModel
	resolve      ModelResolver
	registry     *tools.Registry
	toolInfos    []*schema.ToolInfo
	sessions     *Store
	transcripts  TranscriptStore
	maxContext   int
}

// New constructs an Orchestrator, resolving tool schemas up front so each
// request only has to bind them.
func New(ctx context.Context, cfg *Config) (*Orchestrator, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat: Model must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("chat: Sessions must not be nil")
	}

	var infos []*schema.ToolInfo
	if cfg.Tools != nil {
		var err error
		infos, err = cfg.Tools.Infos(ctx)
		if err != nil {
			return nil, fmt.Errorf("chat: resolving tool schemas: %w", err)
		}
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Orchestrator{
		defaultModel: cfg.Model,
		resolve:      cfg.Resolve,
		registry:     cfg.Tools,
		toolInfos:    infos,
		sessions:     cfg.Sessions,
		transcripts:  cfg.Transcripts,
		maxContext:   maxCtx,
	}, nil
}

// Request is one user message addressed to a session.
type Request struct {
	// SessionID selects the conversation; empty mints a new session.
	SessionID string
	// Message is the user's question. Must not be blank.
	Message string
	// Model optionally overrides the default backend for this request.
	Model string
}

// Response carries the final answer and the session it belongs to.
type Response struct {
	SessionID string
	Answer    string
	// ToolCycles is 1 when the answer required a tool exchange, 0 otherwise.
	ToolCycles int
}

// Respond runs one full exchange. Concurrent calls for the same session are
// serialized, so each exchange builds its context from the previous one's
// committed turns. On any model or tool failure the session history is left
// exactly as it was before the call.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("chat: message must not be empty")
	}

	base, err := o.pickModel(req.Model)
	if err != nil {
		return nil, err
	}
	m := base
	if len(o.toolInfos) > 0 {
		m, err = base.WithTools(o.toolInfos)
		if err != nil {
			return nil, fmt.Errorf("chat: binding tools: %w", err)
		}
	}

	session := o.sessions.Get(req.SessionID)
	session.exchange.Lock()
	defer session.exchange.Unlock()

	log := logging.FromContext(ctx).With(slog.String("session_id", session.ID()))

	userTurn := schema.UserMessage(req.Message)
	scratch := append(o.buildContext(ctx, session, userTurn), userTurn)

	resp, err := m.Generate(ctx, scratch)
	if err != nil {
		return nil, fmt.Errorf("chat: model generate: %w", err)
	}

	final := resp
	cycles := 0
	if len(resp.ToolCalls) > 0 {
		cycles = 1

		// Only the first requested call is honored; extra parallel calls
		// are dropped along with the rest of the scratch turns.
		tc := resp.ToolCalls[0]
		log.Info("tool call requested", slog.String("tool", tc.Function.Name))
		result, err := o.registryInvoke(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("chat: tool %q: %w", tc.Function.Name, err)
		}

		resp.ToolCalls = resp.ToolCalls[:1]
		scratch = append(scratch,
			resp,
			schema.ToolMessage(result, tc.ID, schema.WithToolName(tc.Function.Name)),
		)

		// The follow-up completion runs on the unbound backend, with no
		// tool descriptors, so the exchange terminates here.
		final, err = base.Generate(ctx, scratch)
		if err != nil {
			return nil, fmt.Errorf("chat: model generate: %w", err)
		}
		// With no tools offered the backend has nothing to call; drop any
		// stray call rather than commit it.
		final.ToolCalls = nil
	}

	session.commit(userTurn, final)
	o.persist(ctx, session.ID(), userTurn, final)

	return &Response{
		SessionID:  session.ID(),
		Answer:     final.Content,
		ToolCycles: cycles,
	}, nil
}

// pickModel resolves the backend for a request.
func (o *Orchestrator) pickModel(name string) (model.ToolCallingChatModel, error) {
	if name == "" {
		return o.defaultModel, nil
	}
	if o.resolve == nil {
		return nil, fmt.Errorf("chat: model override %q not supported", name)
	}
	m, err := o.resolve(name)
	if err != nil {
		return nil, fmt.Errorf("chat: resolving model %q: %w", name, err)
	}
	return m, nil
}

// registryInvoke dispatches a tool call, guarding against a model that calls
// tools when none are registered.
func (o *Orchestrator) registryInvoke(ctx context.Context, tc schema.ToolCall) (string, error) {
	if o.registry == nil {
		return "", fmt.Errorf("%w: %q", tools.ErrUnknownTool, tc.Function.Name)
	}
	return o.registry.Invoke(ctx, tc.Function.Name, tc.Function.Arguments)
}

// buildContext assembles the fixed prompt plus as much committed history as
// the token budget allows, oldest exchanges dropped first.
func (o *Orchestrator) buildContext(ctx context.Context, session *Session, userTurn *schema.Message) []*schema.Message {
	system := schema.SystemMessage(systemPrompt)
	history := session.Turns()

	fixed := []*schema.Message{system, userTurn}
	before := len(history)
	history = budget.TrimHistory(fixed, history, o.maxContext)
	if dropped := before - len(history); dropped > 0 {
		logging.FromContext(ctx).Warn("dropped history turns to fit context window",
			slog.String("session_id", session.ID()),
			slog.Int("dropped", dropped),
			slog.Int("retained", len(history)),
		)
	}

	out := make([]*schema.Message, 0, 1+len(history))
	out = append(out, system)
	out = append(out, history...)
	return out
}

// persist appends the committed turns to the transcript store, if configured.
func (o *Orchestrator) persist(ctx context.Context, sessionID string, turns ...*schema.Message) {
	if o.transcripts == nil {
		return
	}
	for _, t := range turns {
		if err := o.transcripts.Append(ctx, sessionID, string(t.Role), t.Content); err != nil {
			logging.FromContext(ctx).Warn("transcript append failed",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		}
	}
}

// Package tools declares the callable tools the chat model may invoke
// mid-conversation and dispatches invocations by name. Each tool satisfies
// Eino's tool.InvokableTool interface, so its schema can be handed to the
// chat model verbatim and its invocation is a plain JSON-arguments call.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ErrUnknownTool is returned by Invoke when the requested name is not
// registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// ErrInvalidArguments is returned when a tool's arguments fail to parse or a
// required argument is missing.
var ErrInvalidArguments = errors.New("tools: invalid arguments")

// Registry holds the tools available to the conversation orchestrator.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	order  []string
	byName map[string]tool.InvokableTool
}

// NewRegistry registers the given tools, rejecting duplicate names.
// ctx is used to resolve each tool's schema.
func NewRegistry(ctx context.Context, ts ...tool.InvokableTool) (*Registry, error) {
	r := &Registry{byName: make(map[string]tool.InvokableTool, len(ts))}
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: resolving tool info: %w", err)
		}
		if _, exists := r.byName[info.Name]; exists {
			return nil, fmt.Errorf("tools: duplicate tool name %q", info.Name)
		}
		r.byName[info.Name] = t
		r.order = append(r.order, info.Name)
	}
	return r, nil
}

// Infos returns the schemas of all registered tools in registration order,
// ready to hand to the chat model as available tools.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		info, err := r.byName[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: resolving tool info for %q: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Invoke dispatches a tool call by name with JSON-encoded arguments and
// returns the tool's textual result.
func (r *Registry) Invoke(ctx context.Context, name, argumentsJSON string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	out, err := t.InvokableRun(ctx, argumentsJSON)
	if err != nil {
		return "", fmt.Errorf("tools: %q failed: %w", name, err)
	}
	return out, nil
}

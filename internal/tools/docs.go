package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/docschat/docschat-go/internal/retrieve"
)

// DocsToolName is the name the chat model uses to request a documentation
// lookup.
const DocsToolName = "search_documentation"

// DocsSearch exposes a retriever as an invokable tool. The model supplies a
// natural-language question and receives the most relevant documentation
// passages joined into a single string.
type DocsSearch struct {
	retriever retrieve.Retriever
	topK      int
}

// NewDocsSearch wraps the retriever in a tool returning the top-k passages
// per question. k <= 0 selects the retriever default.
func NewDocsSearch(r retrieve.Retriever, topK int) *DocsSearch {
	if topK <= 0 {
		topK = retrieve.DefaultTopK
	}
	return &DocsSearch{retriever: r, topK: topK}
}

type docsArgs struct {
	Question string `json:"question"`
}

// Info describes the tool schema handed to the chat model.
func (d *DocsSearch) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: DocsToolName,
		Desc: "Search the official documentation for passages relevant to a user question. " +
			"Use this whenever the answer may depend on documented behavior.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"question": {
				Type:     schema.String,
				Desc:     "The user question to look up in the documentation.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun parses the JSON arguments, runs the retrieval, and returns the
// matching passages separated by blank lines. An empty result set yields an
// explicit "nothing found" message rather than an empty string, so the model
// has something to reason about.
func (d *DocsSearch) InvokableRun(ctx context.Context, argumentsJSON string, _ ...tool.Option) (string, error) {
	var args docsArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if strings.TrimSpace(args.Question) == "" {
		return "", fmt.Errorf("%w: question must not be empty", ErrInvalidArguments)
	}

	passages, err := d.retriever.Retrieve(ctx, args.Question, d.topK)
	if err != nil {
		return "", fmt.Errorf("tools: documentation search: %w", err)
	}
	if len(passages) == 0 {
		return "No relevant documentation was found for this question.", nil
	}
	return strings.Join(passages, "\n\n"), nil
}

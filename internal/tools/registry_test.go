package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type echoTool struct {
	name string
}

func (e *echoTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: e.name, Desc: "echoes its arguments"}, nil
}

func (e *echoTool) InvokableRun(_ context.Context, argumentsJSON string, _ ...tool.Option) (string, error) {
	return argumentsJSON, nil
}

type fixedRetriever struct {
	passages []string
	err      error
	lastK    int
	lastQ    string
}

func (f *fixedRetriever) Retrieve(_ context.Context, question string, k int) ([]string, error) {
	f.lastQ = question
	f.lastK = k
	return f.passages, f.err
}

func Test_Registry_DispatchesByName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg, err := NewRegistry(ctx, &echoTool{name: "alpha"}, &echoTool{name: "beta"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	out, err := reg.Invoke(ctx, "beta", `{"x":1}`)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != `{"x":1}` {
		t.Errorf("Invoke returned %q, want the echoed arguments", out)
	}
}

func Test_Registry_UnknownToolRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg, err := NewRegistry(ctx, &echoTool{name: "alpha"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, err = reg.Invoke(ctx, "missing", "{}")
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Invoke error = %v, want ErrUnknownTool", err)
	}
}

func Test_Registry_DuplicateNameRejected(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(context.Background(), &echoTool{name: "same"}, &echoTool{name: "same"})
	if err == nil {
		t.Fatal("NewRegistry accepted duplicate tool names")
	}
}

func Test_Registry_InfosKeepRegistrationOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg, err := NewRegistry(ctx, &echoTool{name: "first"}, &echoTool{name: "second"}, &echoTool{name: "third"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	infos, err := reg.Infos(ctx)
	if err != nil {
		t.Fatalf("Infos: %v", err)
	}
	got := make([]string, len(infos))
	for i, info := range infos {
		got[i] = info.Name
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Infos order = %v, want %v", got, want)
		}
	}
}

func Test_DocsSearch_JoinsPassages(t *testing.T) {
	t.Parallel()

	r := &fixedRetriever{passages: []string{"first passage", "second passage"}}
	d := NewDocsSearch(r, 2)

	out, err := d.InvokableRun(context.Background(), `{"question":"how do I configure logging?"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if !strings.Contains(out, "first passage") || !strings.Contains(out, "second passage") {
		t.Errorf("result %q missing retrieved passages", out)
	}
	if r.lastQ != "how do I configure logging?" {
		t.Errorf("retriever saw question %q", r.lastQ)
	}
	if r.lastK != 2 {
		t.Errorf("retriever saw k = %d, want 2", r.lastK)
	}
}

func Test_DocsSearch_DefaultTopK(t *testing.T) {
	t.Parallel()

	r := &fixedRetriever{passages: []string{"p"}}
	d := NewDocsSearch(r, 0)

	if _, err := d.InvokableRun(context.Background(), `{"question":"q"}`); err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if r.lastK != 4 {
		t.Errorf("retriever saw k = %d, want the default of 4", r.lastK)
	}
}

func Test_DocsSearch_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()

	d := NewDocsSearch(&fixedRetriever{}, 4)

	for _, args := range []string{`{}`, `{"question":"   "}`, `not json`} {
		if _, err := d.InvokableRun(context.Background(), args); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("InvokableRun(%q) error = %v, want ErrInvalidArguments", args, err)
		}
	}
}

func Test_DocsSearch_EmptyResultExplains(t *testing.T) {
	t.Parallel()

	d := NewDocsSearch(&fixedRetriever{passages: nil}, 4)

	out, err := d.InvokableRun(context.Background(), `{"question":"q"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if out == "" {
		t.Error("empty retrieval produced an empty tool result")
	}
}

package index

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"testing"

	"github.com/docschat/docschat-go/internal/chunk"
	"github.com/docschat/docschat-go/internal/corpus"
	"github.com/docschat/docschat-go/internal/vecindex"
)

// hashEmbedder returns a deterministic 4-dimensional vector derived from the
// text, so self-similarity is exact without a live provider.
type hashEmbedder struct {
	calls int
}

func hashVector(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	return []float32{
		float32(sum & 0xff),
		float32((sum >> 8) & 0xff),
		float32((sum >> 16) & 0xff),
		float32((sum >> 24) & 0xff),
	}
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

// shrinkingEmbedder returns vectors whose dimension drops after the first
// call, to trip the dimension guard.
type shrinkingEmbedder struct {
	calls int
}

func (e *shrinkingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	dim := 4
	if e.calls > 1 {
		dim = 3
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func testDocs() []corpus.Document {
	return []corpus.Document{
		{Title: "A", Content: "alpha beta"},
		{Title: "B", Content: "gamma delta"},
	}
}

func Test_Builder_Invariants(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(&hashEmbedder{}, &Config{Field: chunk.FieldContent, ChunkSize: 100})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	flat, bundle, err := b.Build(context.Background(), testDocs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if flat.Size() != len(bundle.Chunks) || flat.Size() != len(bundle.Embeddings) {
		t.Fatalf("inconsistent build: %d vectors, %d chunks, %d embeddings",
			flat.Size(), len(bundle.Chunks), len(bundle.Embeddings))
	}
	if flat.Size() != 2 {
		t.Fatalf("two short documents at chunk size 100 must yield 2 chunks, got %d", flat.Size())
	}

	// Every chunk must be its own nearest neighbor at distance 0.
	for i, emb := range bundle.Embeddings {
		hits, err := flat.Search(emb, 1)
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if hits[0].ID != i || hits[0].Distance != 0 {
			t.Errorf("chunk %d: want self at distance 0, got %+v", i, hits[0])
		}
	}
}

func Test_Builder_ProgressObservable(t *testing.T) {
	t.Parallel()

	var reported [][2]int
	b, err := NewBuilder(&hashEmbedder{}, &Config{
		Field:    chunk.FieldContent,
		Progress: func(done, total int) { reported = append(reported, [2]int{done, total}) },
	})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	if _, _, err := b.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(reported) != 2 {
		t.Fatalf("want 2 progress reports, got %d", len(reported))
	}
	if reported[0] != [2]int{1, 2} || reported[1] != [2]int{2, 2} {
		t.Errorf("progress sequence wrong: %v", reported)
	}
}

func Test_Builder_DimensionMismatchFatal(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(&shrinkingEmbedder{}, &Config{Field: chunk.FieldContent})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	_, _, err = b.Build(context.Background(), testDocs())
	if !errors.Is(err, vecindex.ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func Test_BuildAndSave_FailedBuildLeavesNoArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b, err := NewBuilder(&shrinkingEmbedder{}, &Config{Field: chunk.FieldContent})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	if err := b.BuildAndSave(context.Background(), testDocs(), dir, "docs-v1"); err == nil {
		t.Fatal("expected build failure")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed build must persist nothing, found %d files", len(entries))
	}

	if _, _, err := vecindex.Load(dir, "docs-v1"); !errors.Is(err, vecindex.ErrArtifactNotFound) {
		t.Errorf("want ErrArtifactNotFound after failed build, got %v", err)
	}
}

func Test_Builder_TitleFieldDefault(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(&hashEmbedder{}, nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	_, bundle, err := b.Build(context.Background(), testDocs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if bundle.Chunks[0].Text != "A" || bundle.Chunks[1].Text != "B" {
		t.Errorf("default field must index titles, got %+v", bundle.Chunks)
	}
}

func Test_Builder_EmptyCorpusRejected(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(&hashEmbedder{}, nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, _, err := b.Build(context.Background(), nil); err == nil {
		t.Error("expected error for empty corpus")
	}
}

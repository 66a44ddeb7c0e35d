// Package index implements the corpus indexing pipeline: chunk the documents,
// embed each chunk, and assemble the vector index with its parallel chunk
// list. The pipeline is invoked by the `docschat index` CLI command and is a
// batch job — an index is built once per corpus snapshot and then served
// read-only.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/docschat/docschat-go/internal/chunk"
	"github.com/docschat/docschat-go/internal/corpus"
	"github.com/docschat/docschat-go/internal/embedder"
	"github.com/docschat/docschat-go/internal/logging"
	"github.com/docschat/docschat-go/internal/vecindex"
)

// Config holds the configuration for the index build pipeline.
type Config struct {
	// ChunkSize is the maximum number of bytes per chunk.
	// Clamped to chunk.MaxSize; zero means chunk.MaxSize.
	ChunkSize int

	// Field selects which document field is indexed (title or content).
	// Defaults to chunk.FieldTitle — hits join back to full page content.
	Field chunk.Field

	// EmbedRPS paces embedding calls (requests/second) to stay under the
	// provider's rate limit. Zero disables pacing.
	EmbedRPS float64

	// Progress is called after each chunk is embedded with (done, total).
	// Optional.
	Progress func(done, total int)
}

// Builder runs the chunk → embed → index pipeline.
type Builder struct {
	embedder embedder.Embedder
	cfg      *Config
	limiter  *rate.Limiter
}

// NewBuilder constructs a Builder from the embedding capability and config.
func NewBuilder(e embedder.Embedder, cfg *Config) (*Builder, error) {
	if e == nil {
		return nil, fmt.Errorf("index: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Field == "" {
		cfg.Field = chunk.FieldTitle
	}
	if cfg.Progress == nil {
		cfg.Progress = func(int, int) {}
	}

	var limiter *rate.Limiter
	if cfg.EmbedRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRPS), 1)
	}

	return &Builder{embedder: e, cfg: cfg, limiter: limiter}, nil
}

// Build chunks the documents and embeds every chunk in order, returning the
// assembled index and its bundle. The first embedding establishes the vector
// dimension; any later mismatch aborts the build. Nothing is persisted here —
// use BuildAndSave, or vecindex.Save, after a successful build.
func (b *Builder) Build(ctx context.Context, docs []corpus.Document) (*vecindex.Flat, *vecindex.Bundle, error) {
	log := logging.FromContext(ctx)

	chunks := chunk.Split(docs, b.cfg.Field, b.cfg.ChunkSize)
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("index: corpus produced no chunks")
	}
	log.Info("index: chunked corpus",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)),
		slog.String("field", string(b.cfg.Field)),
	)

	flat := vecindex.NewFlat()
	embeddings := make([][]float32, 0, len(chunks))

	// Chunks are embedded one at a time, in order: array position is chunk
	// order, never call completion order, and progress stays observable.
	for i, c := range chunks {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, nil, fmt.Errorf("index: rate wait: %w", err)
			}
		}

		vecs, err := b.embedder.Embed(ctx, []string{c.Text})
		if err != nil {
			return nil, nil, fmt.Errorf("index: embedding chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if len(vecs) != 1 {
			return nil, nil, fmt.Errorf("index: embedder returned %d vectors for chunk %d", len(vecs), i)
		}

		if err := flat.Add(vecs[0]); err != nil {
			return nil, nil, fmt.Errorf("index: chunk %d: %w", i, err)
		}
		embeddings = append(embeddings, vecs[0])
		b.cfg.Progress(i+1, len(chunks))
	}

	log.Info("index: build complete",
		slog.Int("vectors", flat.Size()),
		slog.Int("dimension", flat.Dim()),
	)

	return flat, &vecindex.Bundle{Chunks: chunks, Embeddings: embeddings}, nil
}

// BuildAndSave runs Build and persists the artifact pair under dir/name only
// when the whole build succeeded — a failed build leaves nothing on disk.
func (b *Builder) BuildAndSave(ctx context.Context, docs []corpus.Document, dir, name string) error {
	flat, bundle, err := b.Build(ctx, docs)
	if err != nil {
		return err
	}
	if err := vecindex.Save(dir, name, flat, bundle); err != nil {
		return fmt.Errorf("index: persist %q: %w", name, err)
	}
	return nil
}

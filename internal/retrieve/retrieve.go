// Package retrieve answers "which documentation pages are relevant to this
// question" by embedding the question, searching a vector index over corpus
// chunks, and joining the hits back to full document content by title.
package retrieve

import (
	"context"
	"fmt"

	"github.com/docschat/docschat-go/internal/chunk"
	"github.com/docschat/docschat-go/internal/corpus"
	"github.com/docschat/docschat-go/internal/embedder"
	"github.com/docschat/docschat-go/internal/vecindex"
)

// DefaultTopK is the number of chunks fetched when the caller passes k <= 0.
const DefaultTopK = 4

// Retriever returns the contents of the documents most relevant to a
// question, nearest-first. Duplicates are preserved: a question whose
// nearest chunks all map to one document returns that content repeated.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]string, error)
}

// Searcher is the nearest-neighbor capability Local needs from an index.
// *vecindex.Flat satisfies it.
type Searcher interface {
	Search(query []float32, k int) ([]vecindex.Hit, error)
	Size() int
}

// Local is a Retriever over an in-process vector index and its parallel
// chunk list. The index is read-only, so Local is safe for unlimited
// concurrent readers.
type Local struct {
	embedder embedder.Embedder
	index    Searcher
	chunks   []chunk.Chunk
	docs     *corpus.Set
}

// NewLocal constructs a Local retriever. chunks must be parallel to the
// index: chunks[i] describes the index's vector i.
func NewLocal(e embedder.Embedder, index Searcher, chunks []chunk.Chunk, docs *corpus.Set) (*Local, error) {
	if e == nil {
		return nil, fmt.Errorf("retrieve: embedder must not be nil")
	}
	if index == nil || docs == nil {
		return nil, fmt.Errorf("retrieve: index and corpus must not be nil")
	}
	if index.Size() != len(chunks) {
		return nil, fmt.Errorf("retrieve: index has %d vectors but %d chunks", index.Size(), len(chunks))
	}
	return &Local{embedder: e, index: index, chunks: chunks, docs: docs}, nil
}

// Retrieve embeds the question, finds the k nearest chunks, and joins each
// hit's source title against the corpus. A chunk whose title no longer
// matches any document is skipped — corpus coverage gaps are tolerated, not
// errors.
func (r *Local) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("retrieve: embedding question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("retrieve: embedder returned %d vectors for one question", len(vecs))
	}

	hits, err := r.index.Search(vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: vector search: %w", err)
	}

	contents := make([]string, 0, len(hits))
	for _, h := range hits {
		doc, ok := r.docs.ByTitle(r.chunks[h.ID].Source)
		if !ok {
			continue
		}
		contents = append(contents, doc.Content)
	}
	return contents, nil
}

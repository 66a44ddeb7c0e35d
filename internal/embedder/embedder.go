// Package embedder provides the embedding capability used by the index
// builder and the retriever: converting text into dense vector embeddings.
// Implementations talk to a provider's REST API (Mistral/OpenAI-compatible,
// Ollama) via plain HTTP; RetryEmbedder wraps any of them with transient
// fault handling.
package embedder

import "context"

// Embedder converts a batch of texts into their embeddings. The returned
// slice is parallel to the input slice. Implementations must be safe to call
// from multiple goroutines; each call is independent and stateless aside from
// shared provider credentials.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

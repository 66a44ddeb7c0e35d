package retrieve

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docschat/docschat-go/internal/chunk"
	"github.com/docschat/docschat-go/internal/corpus"
	"github.com/docschat/docschat-go/internal/embedder"
)

// QdrantConfig holds connection parameters for a Qdrant-backed chunk store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection holding the corpus chunks.
	Collection string

	// VectorSize is the embedding dimension for collection creation.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore holds corpus chunks in a Qdrant collection, as an alternative
// to the local flat index for deployments that already run Qdrant. Chunk ids
// are the chunk's build-order position, so identity matches the local index.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig
}

// NewQdrantStore connects to Qdrant and ensures the target collection exists.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureCollection creates the collection if it does not already exist.
// Euclidean distance matches the local flat index's ranking.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Upsert stores the chunk list with its parallel embeddings; embeddings[i] is
// the vector for chunks[i], and i becomes the point id.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"source":  c.Source,
				"ordinal": int64(c.Ordinal),
				"text":    c.Text,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// SearchTitles returns the source titles of the k chunks nearest to the
// query embedding, nearest-first.
func (s *QdrantStore) SearchTitles(ctx context.Context, query []float32, k int) ([]string, error) {
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	titles := make([]string, 0, len(results))
	for _, r := range results {
		if p := r.Payload; p != nil {
			if v, ok := p["source"]; ok {
				titles = append(titles, v.GetStringValue())
			}
		}
	}
	return titles, nil
}

// Ping probes the Qdrant instance using its native health check RPC.
// Used by the server's readiness endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Remote is a Retriever backed by a QdrantStore. The title join against the
// corpus works exactly as in Local.
type Remote struct {
	embedder embedder.Embedder
	store    *QdrantStore
	docs     *corpus.Set
}

// NewRemote constructs a Remote retriever over an existing QdrantStore.
func NewRemote(e embedder.Embedder, store *QdrantStore, docs *corpus.Set) (*Remote, error) {
	if e == nil || store == nil || docs == nil {
		return nil, fmt.Errorf("retrieve: embedder, store, and corpus must not be nil")
	}
	return &Remote{embedder: e, store: store, docs: docs}, nil
}

// Retrieve embeds the question, searches the Qdrant collection, and joins
// hit titles against the corpus. Join gaps are skipped.
func (r *Remote) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
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

	titles, err := r.store.SearchTitles(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	contents := make([]string, 0, len(titles))
	for _, title := range titles {
		doc, ok := r.docs.ByTitle(title)
		if !ok {
			continue
		}
		contents = append(contents, doc.Content)
	}
	return contents, nil
}

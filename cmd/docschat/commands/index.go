package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docschat/docschat-go/internal/chunk"
	"github.com/docschat/docschat-go/internal/embedder"
	"github.com/docschat/docschat-go/internal/index"
	"github.com/docschat/docschat-go/internal/retrieve"
	"github.com/docschat/docschat-go/internal/vecindex"
)

// NewIndexCmd constructs the `docschat index` command, which builds the
// retrieval index from a corpus snapshot.
func NewIndexCmd() *cobra.Command {
	var (
		dir       string
		name      string
		chunkSize int
		field     string
		rps       float64
		useQdrant bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the retrieval index from a corpus snapshot",
		Long: `Build the vector index DocsChat retrieves documentation from.

Reads the corpus snapshot (INDEX_SNAPSHOT, default ./corpus.json), splits
each document into chunks, embeds every chunk, and writes the index artifacts
to disk. With --qdrant the embeddings are also upserted into a Qdrant
collection for remote retrieval.

Embedding calls are paced with --rps to stay under the provider's rate limit.

Examples:
  docschat index
  docschat index --field content --chunk-size 512
  INDEX_SNAPSHOT=./docs/corpus.json docschat index --qdrant`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			f := chunk.Field(field)
			if f != chunk.FieldTitle && f != chunk.FieldContent {
				return fmt.Errorf("index: invalid --field %q (valid: title, content)", field)
			}

			set, snapshot, err := loadCorpus()
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			log.Info("corpus loaded", slog.String("snapshot", snapshot), slog.Int("documents", set.Len()))

			emb, err := embedder.NewFromEnv(log)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			builder, err := index.NewBuilder(emb, &index.Config{
				ChunkSize: chunkSize,
				Field:     f,
				EmbedRPS:  rps,
				Progress: func(done, total int) {
					if done%25 == 0 || done == total {
						log.Info("embedding", slog.Int("done", done), slog.Int("total", total))
					}
				},
			})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			if dir == "" {
				dir = getEnvOrDefault("INDEX_DIR", defaultIndexDir())
			}

			flat, bundle, err := builder.Build(ctx, set.Docs())
			if err != nil {
				return fmt.Errorf("index: build: %w", err)
			}
			if err := vecindex.Save(dir, name, flat, bundle); err != nil {
				return fmt.Errorf("index: save: %w", err)
			}
			log.Info("index written",
				slog.String("dir", dir),
				slog.String("name", name),
				slog.Int("vectors", flat.Size()),
				slog.Int("dim", flat.Dim()),
			)

			if useQdrant {
				store, err := retrieve.NewQdrantStore(ctx, &retrieve.QdrantConfig{
					Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
					Port:       getEnvInt("QDRANT_PORT", 6334),
					Collection: getEnvOrDefault("QDRANT_COLLECTION", "docschat"),
					VectorSize: uint64(flat.Dim()), //nolint:gosec // dimensions are bounded
					APIKey:     os.Getenv("QDRANT_API_KEY"),
					UseTLS:     os.Getenv("QDRANT_TLS") == "true",
				})
				if err != nil {
					return fmt.Errorf("index: connect to qdrant: %w", err)
				}
				defer func() { _ = store.Close() }()

				if err := store.Upsert(ctx, bundle.Chunks, bundle.Embeddings); err != nil {
					return fmt.Errorf("index: qdrant upsert: %w", err)
				}
				log.Info("qdrant collection populated", slog.Int("points", len(bundle.Chunks)))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory for index artifacts (default: INDEX_DIR or ~/.docschat/index)")
	cmd.Flags().StringVar(&name, "name", getEnvOrDefault("INDEX_NAME", "docs"), "Base name for index artifact files")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", getEnvInt("INDEX_CHUNK_SIZE", 0), "Maximum bytes per chunk (0 = default)")
	cmd.Flags().StringVar(&field, "field", getEnvOrDefault("INDEX_FIELD", "title"), "Document field to index (title or content)")
	cmd.Flags().Float64Var(&rps, "rps", getEnvFloat("INDEX_EMBED_RPS", 2), "Embedding requests per second (0 = unpaced)")
	cmd.Flags().BoolVar(&useQdrant, "qdrant", false, "Also upsert embeddings into a Qdrant collection")

	return cmd
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/docschat/docschat-go/internal/corpus"
	"github.com/docschat/docschat-go/internal/embedder"
	"github.com/docschat/docschat-go/internal/retrieve"
	"github.com/docschat/docschat-go/internal/server"
	"github.com/docschat/docschat-go/internal/vecindex"
)

// defaultIndexDir returns the default directory for index artifacts
// (~/.docschat/index). Falls back to a relative path when the home
// directory cannot be resolved.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docschat/index"
	}
	return filepath.Join(home, ".docschat", "index")
}

// loadCorpus reads the corpus snapshot named by INDEX_SNAPSHOT (or the
// default ./corpus.json) and validates it.
func loadCorpus() (*corpus.Set, string, error) {
	path := getEnvOrDefault("INDEX_SNAPSHOT", "corpus.json")
	set, err := corpus.Load(path)
	if err != nil {
		return nil, path, err
	}
	return set, path, nil
}

// buildRetriever constructs the passage retriever for ask/serve. With
// useQdrant it connects to a Qdrant collection and returns the store as a
// readiness pinger; otherwise it loads the local flat index artifacts from
// INDEX_DIR/INDEX_NAME. The returned close func releases any held
// connections and is safe to call unconditionally.
func buildRetriever(ctx context.Context, log *slog.Logger, useQdrant bool) (retrieve.Retriever, []server.Pinger, func(), error) {
	noop := func() {}

	set, snapshot, err := loadCorpus()
	if err != nil {
		return nil, nil, noop, fmt.Errorf("load corpus: %w", err)
	}
	log.Info("corpus loaded", slog.String("snapshot", snapshot), slog.Int("documents", set.Len()))

	emb, err := embedder.NewFromEnv(log)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("initialise embedder: %w", err)
	}

	if useQdrant {
		store, err := retrieve.NewQdrantStore(ctx, &retrieve.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "docschat"),
			VectorSize: uint64(getEnvInt("EMBEDDING_DIMENSIONS", 1024)), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect to qdrant: %w", err)
		}
		r, err := retrieve.NewRemote(emb, store, set)
		if err != nil {
			_ = store.Close()
			return nil, nil, noop, err
		}
		log.Info("retriever ready", slog.String("backend", "qdrant"))
		return r, []server.Pinger{store}, func() { _ = store.Close() }, nil
	}

	dir := getEnvOrDefault("INDEX_DIR", defaultIndexDir())
	name := getEnvOrDefault("INDEX_NAME", "docs")
	flat, bundle, err := vecindex.Load(dir, name)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("load index (run `docschat index` first?): %w", err)
	}
	r, err := retrieve.NewLocal(emb, flat, bundle.Chunks, set)
	if err != nil {
		return nil, nil, noop, err
	}
	log.Info("retriever ready",
		slog.String("backend", "local"),
		slog.String("dir", dir),
		slog.Int("vectors", flat.Size()),
	)
	return r, nil, noop, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

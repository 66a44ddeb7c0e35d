package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docschat/docschat-go/internal/chat"
	"github.com/docschat/docschat-go/internal/logging"
	"github.com/docschat/docschat-go/internal/provider"
	"github.com/docschat/docschat-go/internal/server"
	"github.com/docschat/docschat-go/internal/store"
	"github.com/docschat/docschat-go/internal/tools"
	"github.com/docschat/docschat-go/internal/tracing"
)

// NewServeCmd constructs the `docschat serve` command, which starts the
// HTTP chat server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var useQdrant bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DocsChat HTTP server",
		Long: `Start the DocsChat HTTP server on localhost.

The server exposes a JSON API: POST /api/chat for conversation turns,
POST /api/reset to discard session history, and GET /api/models to list the
models the configured backend offers. Liveness, readiness, and Prometheus
metrics endpoints are exposed alongside.

Examples:
  docschat serve
  docschat serve --port 9090
  MODEL_PROVIDER=ollama docschat serve --qdrant`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, providerCfg, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			// Open the transcript store. DOCSCHAT_TRANSCRIPT_DB overrides the
			// default path (~/.docschat/transcripts.db). Set to "disabled" to
			// run without durable transcripts.
			var transcripts chat.TranscriptStore
			dbPath := os.Getenv("DOCSCHAT_TRANSCRIPT_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("transcripts: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ts, tsErr := store.Open(dbPath)
					if tsErr != nil {
						log.Warn("transcripts: failed to open store, disabling", slog.Any("error", tsErr))
					} else {
						transcripts = ts
						defer func() { _ = ts.Close() }()
						log.Info("transcripts: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("transcripts: disabled via DOCSCHAT_TRANSCRIPT_DB=disabled")
			}

			retriever, retrieverPingers, closeRetriever, err := buildRetriever(ctx, log, useQdrant)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeRetriever()

			registry, err := tools.NewRegistry(ctx, tools.NewDocsSearch(retriever, 0))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			sessions := chat.NewStore()
			orch, err := chat.New(ctx, &chat.Config{
				Model:            chatModel,
				Resolve:          provider.Resolver(ctx, providerCfg),
				Tools:            registry,
				Sessions:         sessions,
				Transcripts:      transcripts,
				MaxContextTokens: getEnvInt("CHAT_MAX_CONTEXT_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise orchestrator: %w", err)
			}

			pingers := append([]server.Pinger{server.NewModelPinger(providerCfg)}, retrieverPingers...)

			listModels := func(ctx context.Context) ([]string, error) {
				return provider.ListModels(ctx, providerCfg)
			}

			srv, err := server.New(orch, sessions, listModels, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCSCHAT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().BoolVar(&useQdrant, "qdrant", false, "Retrieve from a Qdrant collection instead of the local index")

	return cmd
}

package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docschat/docschat-go/internal/chat"
	"github.com/docschat/docschat-go/internal/provider"
	"github.com/docschat/docschat-go/internal/tools"
)

// NewAskCmd constructs the `docschat ask` command, which sends a single
// question through the full retrieval pipeline and prints the answer.
func NewAskCmd() *cobra.Command {
	var useQdrant bool
	var modelName string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question about the documentation",
		Long: `Ask a single natural language question about the indexed documentation.

The question runs through the same orchestrator as the HTTP API: the model
may call the documentation search tool before answering, and the final answer
is printed to stdout.

Examples:
  docschat ask "how do I configure the connection timeout?"
  docschat ask --model mistral-small-latest "what does the retry policy do?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			chatModel, providerCfg, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			retriever, _, closeRetriever, err := buildRetriever(ctx, log, useQdrant)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeRetriever()

			registry, err := tools.NewRegistry(ctx, tools.NewDocsSearch(retriever, 0))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			orch, err := chat.New(ctx, &chat.Config{
				Model:    chatModel,
				Resolve:  provider.Resolver(ctx, providerCfg),
				Tools:    registry,
				Sessions: chat.NewStore(),
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise orchestrator: %w", err)
			}

			resp, err := orch.Respond(ctx, chat.Request{
				Message: strings.Join(args, " "),
				Model:   modelName,
			})
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			fmt.Println(resp.Answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useQdrant, "qdrant", false, "Retrieve from a Qdrant collection instead of the local index")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Override the configured chat model for this question")

	return cmd
}

// Package commands defines all Cobra CLI commands for the docschat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/docschat/docschat-go/internal/audit"
	"github.com/docschat/docschat-go/internal/config"
	"github.com/docschat/docschat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docschat",
		Short: "DocsChat — a retrieval-augmented chat backend for documentation",
		Long: `DocsChat answers questions about a documentation corpus.

It builds a local vector index from a corpus snapshot, retrieves the most
relevant pages for each question, and lets an LLM answer with the retrieved
passages as grounding. Conversations run over a JSON HTTP API or as one-shot
CLI questions.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.docschat/config.yaml).
See 'docschat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docschat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIndexCmd(),
		NewVersionCmd(),
	)

	return root
}

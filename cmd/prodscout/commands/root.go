// Package commands defines all Cobra CLI commands for the prodscout binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/maresbv/prodscout-go/internal/audit"
	"github.com/maresbv/prodscout-go/internal/config"
	"github.com/maresbv/prodscout-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prodscout",
		Short: "ProdScout is an AI research assistant for product catalogs",
		Long: `ProdScout is a retrieval-augmented research assistant for e-commerce
product catalogs.

It answers natural language questions about products, pricing, margins, and
market conditions by planning multi-step research across specialist agents
backed by hybrid catalog search and live web search.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.prodscout/config.yaml).
See 'prodscout --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.prodscout/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}

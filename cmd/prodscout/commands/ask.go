package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maresbv/prodscout-go/internal/logging"
	"github.com/maresbv/prodscout-go/internal/provider"
)

// NewAskCmd constructs the `prodscout ask` command, which runs a single
// research query and prints the synthesized answer to stdout.
func NewAskCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the research assistant a question about the catalog",
		Long: `Ask the research assistant a natural language question.

The assistant plans one or more research steps, routes them to specialist
agents with access to the product catalog and web search, and synthesizes
a single answer.

Examples:
  prodscout ask "what wireless mice do we carry under $50?"
  prodscout ask "which electronics products have the worst margins?"
  prodscout ask "compare our water bottle pricing against current market rates"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			retriever, _, closeStore, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeStore()

			orch, err := buildOrchestrator(chatModel, retriever, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			result, err := orch.Query(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: query failed: %w", err)
			}

			fmt.Println(result.Answer)
			if len(result.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range result.Sources {
					fmt.Printf("  - %s\n", src)
				}
			}
			if verbose {
				fmt.Printf("\nconfidence: %.2f\n", result.Confidence)
				fmt.Printf("agents: %s\n", strings.Join(result.AgentsUsed, ", "))
				fmt.Printf("reasoning: %s\n", result.Reasoning)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print confidence, agents used, and planner reasoning")

	return cmd
}

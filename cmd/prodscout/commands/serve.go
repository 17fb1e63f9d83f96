package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/maresbv/prodscout-go/internal/history"
	"github.com/maresbv/prodscout-go/internal/logging"
	"github.com/maresbv/prodscout-go/internal/provider"
	"github.com/maresbv/prodscout-go/internal/server"
	"github.com/maresbv/prodscout-go/internal/tracing"
)

// NewServeCmd constructs the `prodscout serve` command, which starts the
// HTTP research API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ProdScout HTTP API server",
		Long: `Start the ProdScout HTTP server on localhost.

The server exposes the research API: POST /api/query runs a research query,
POST /api/feedback records a rating for a past answer, and GET /api/history
lists past queries. Liveness, readiness, and Prometheus metrics endpoints
are also served.

Examples:
  prodscout serve
  prodscout serve --port 9090
  MODEL_PROVIDER=azure prodscout serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Flags win over PRODSCOUT_HOST/PRODSCOUT_PORT, which win over defaults.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("PRODSCOUT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("PRODSCOUT_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			// Open the query history store. PRODSCOUT_HISTORY_DB overrides the
			// default path (~/.prodscout/history.db). Set to "disabled" to disable.
			var historyStore history.Store
			dbPath := os.Getenv("PRODSCOUT_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via PRODSCOUT_HISTORY_DB=disabled")
			}

			retriever, store, closeStore, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeStore()

			orch, err := buildOrchestrator(chatModel, retriever, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewModelPinger(chatModel, string(providerCfg.Backend)),
				server.NewQdrantPinger(store.Client()),
			}

			srv, err := server.New(orch, historyStore, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("PRODSCOUT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

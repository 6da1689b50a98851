package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tfmodel/tfmodel/internal/logging"
	"github.com/tfmodel/tfmodel/internal/node"
	"github.com/tfmodel/tfmodel/internal/server"
)

// newServeCmd creates the `tfmodel serve` command.
func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node host HTTP server",
		Long: `Start the node host: one model node per entry in the config's nodes
list. Each node with a model URL resolves it through the cache at startup.
Inference requests are served over HTTP until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromCmd(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			cache, err := openCache(ctx, cfg)
			if err != nil {
				return err
			}

			nodes := make([]*node.Node, 0, len(cfg.Nodes))
			for _, nc := range cfg.Nodes {
				n := node.New(
					node.Definition{ID: nc.ID, Name: nc.Name, ModelURL: nc.ModelURL},
					cache,
					nil, // No engine is bundled; nodes warm the cache and report status.
					node.Capabilities{
						Status: func(status string) {
							log.Info().
								Str("component", "node").
								Str("node_id", nc.ID).
								Str("status", status).
								Msg("node status")
						},
					},
				)
				// A node that fails to start stays registered with an error
				// status rather than taking the whole host down.
				if startErr := n.Start(ctx); startErr != nil {
					log.Error().
						Err(startErr).
						Str("node_id", nc.ID).
						Msg("node failed to start")
				}
				nodes = append(nodes, n)
			}

			srv := server.New(cache, nodes, *log)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Listen) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return srv.Shutdown(context.Background())
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

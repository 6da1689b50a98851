// Package cli implements the tfmodel command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfmodel/tfmodel/internal/config"
	"github.com/tfmodel/tfmodel/internal/fetch"
	"github.com/tfmodel/tfmodel/internal/logging"
	"github.com/tfmodel/tfmodel/internal/modelcache"
)

// ctxKey is a private context key type to avoid collisions.
type ctxKey string

// configKey carries the loaded *config.Config through the command context.
const configKey ctxKey = "config"

const rootCmdExample = `  # Resolve a model URL to a local cached path
  tfmodel resolve https://example.com/models/mobilenet/model.json

  # List cached models
  tfmodel cache list

  # Evict one model from the cache
  tfmodel cache remove https://example.com/models/mobilenet/model.json

  # Run the node host with nodes from ~/.tfmodel/config.yaml
  tfmodel serve`

// NewRootCmd creates the root cobra command for the tfmodel CLI.
// It wires up config loading, logging and subcommands (resolve, cache, serve).
func NewRootCmd(ver string) *cobra.Command {
	var logResult logging.Result

	cmd := &cobra.Command{
		Use:     "tfmodel",
		Short:   "TensorFlow.js model cache and node host",
		Long:    "tfmodel downloads TensorFlow.js web-format models, caches them on disk, and hosts them as inference nodes.",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logCfg := logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				File:   cfg.Logging.File,
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
				logCfg.Format = logging.FormatConsole
			}
			logResult = logging.NewLogger(logCfg)

			log := logging.ComponentLogger(logResult.Logger, "cli")
			ctx := logging.ContextWithLogger(cmd.Context(), log)
			ctx = logging.ContextWithTraceID(ctx, logging.NewTraceID())
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)

			log.Debug().Str("command", cmd.Name()).Msg("command started")
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return logResult.Close()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging to the console")
	cmd.PersistentFlags().String("config", "", "path to config file (default ~/.tfmodel/config.yaml)")
	cmd.PersistentFlags().String("cache-dir", "", "model cache directory (overrides config and TFMODEL_CACHE_DIR)")

	cmd.AddCommand(newResolveCmd(), newCacheCmd(), newServeCmd())
	return cmd
}

// loadConfig reads the config honoring the --config and --cache-dir flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
		cfg.Cache.Dir = dir
	}
	return cfg, nil
}

// configFromCmd returns the Config stored by PersistentPreRunE.
func configFromCmd(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey).(*config.Config)
	return cfg
}

// openCache constructs the model cache with HTTP(S) and S3 transports.
func openCache(ctx context.Context, cfg *config.Config) (*modelcache.Cache, error) {
	httpFetcher := fetch.NewHTTPFetcher(nil)
	fetchers := map[string]fetch.Fetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
	}

	s3Fetcher, err := fetch.NewS3Fetcher(fetch.S3Options{
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		DisableSSL:     cfg.S3.DisableSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring S3 transport: %w", err)
	}
	fetchers["s3"] = s3Fetcher

	return modelcache.New(ctx, cfg.Cache.Dir, fetch.NewDispatcher(fetchers))
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"mercator-hq/greenlight/pkg/config"
	"mercator-hq/greenlight/pkg/history"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/server"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gating decision API server",
	Long: `Start the greenlight API server with the specified configuration.

The server loads the configured policies, serves gating decisions over HTTP
and keeps the policy snapshot up to date via the file watcher and the git
sync schedule when those are configured.

Examples:
  # Start with default config
  greenlight serve

  # Start with custom config
  greenlight serve --config /etc/greenlight/config.yaml

  # Override listen address
  greenlight serve --listen 0.0.0.0:8080

  # Validate config and policies without starting the server
  greenlight serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and policies without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := buildComponents(ctx, cfg, logger, true)
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Println("configuration and policies are valid")
		return nil
	}

	// Keep the policy snapshot current: file watcher for local edits, cron
	// sync for the git source.
	if cfg.Policy.Watch {
		watcher := policy.NewWatcher(c.policyDir, 0, logger)
		go func() {
			if err := watcher.Watch(ctx, func() {
				if err := c.reloadPolicies(); err != nil {
					logger.Error("policy reload failed", "error", err)
				}
			}); err != nil {
				logger.Error("policy watcher failed", "error", err)
			}
		}()
	}
	if c.gitSource != nil {
		if err := c.gitSource.StartSync(ctx, func() {
			if err := c.reloadPolicies(); err != nil {
				logger.Error("policy reload failed", "error", err)
			}
		}); err != nil {
			return err
		}
		defer c.gitSource.Stop()
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		stop, err := store.StartRetention(ctx, cfg.History.RetentionSchedule, cfg.History.RetentionDays)
		if err != nil {
			return err
		}
		defer stop()
	}

	var metricsHandler http.Handler
	if c.collector != nil {
		metricsHandler = c.collector.Handler()
	}
	srv := server.New(cfg.Server, c.engine, logger, server.Options{
		History:     store,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Version:     Version,
	})
	return srv.Start(ctx)
}

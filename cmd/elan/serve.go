package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elan-ai/elan/pkg/audit"
	"github.com/elan-ai/elan/pkg/breaker"
	cachepkg "github.com/elan-ai/elan/pkg/cache"
	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/gateway"
	"github.com/elan-ai/elan/pkg/orchestrator"
	"github.com/elan-ai/elan/pkg/provider"
	"github.com/elan-ai/elan/pkg/ratelimit"
	"github.com/elan-ai/elan/pkg/router"
	"github.com/elan-ai/elan/pkg/tracker"
	"github.com/elan-ai/elan/pkg/usagedb"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AI orchestration gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(cfg.Providers) == 0 {
				return fmt.Errorf("no providers configured")
			}

			log, err := newLogger(debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var c *cachepkg.Cache
			if cfg.Cache.Enabled {
				c = cachepkg.New(cfg.Cache.MaxEntries, cfg.Cache.SimilarityThreshold)
				c.StartSweeper(ctx, cfg.Cache.SweepInterval)
			}

			breakers := breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown)
			limiter := ratelimit.New(cfg.RateLimit.Window,
				cfg.RateLimit.GlobalLimit, cfg.RateLimit.SubjectLimit, cfg.RateLimit.AILimit)
			tr := tracker.New(cfg.Profiles())

			rt, err := router.New(cfg.Profiles(), cfg.Router.Routes, breakers)
			if err != nil {
				return fmt.Errorf("init router: %w", err)
			}

			invokers, err := provider.NewRegistry(cfg.Providers)
			if err != nil {
				return fmt.Errorf("init providers: %w", err)
			}

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			usage, err := usagedb.New(cfg.Usage.DBPath)
			if err != nil {
				return fmt.Errorf("init usage db: %w", err)
			}
			defer func() { _ = usage.Close() }()

			orch := orchestrator.New(cfg, c, limiter, rt, breakers, tr, invokers, log)
			srv := gateway.New(cfg, orch, tr, c, breakers, auditor, usage, log)

			log.Info("starting elan gateway",
				zap.String("config", configPath),
				zap.Int("providers", len(cfg.Providers)))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "elan.yaml", "path to config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose development logging")
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

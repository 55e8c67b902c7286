// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dramarelay/internal/config"
	"github.com/ManuGH/dramarelay/internal/daemon"
	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	// Safe defaults until the config is loaded.
	drlog.Configure(drlog.Config{
		Level:   "info",
		Service: "dramarelay",
		Version: version.Version,
	})

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}

	loader := config.NewLoader(opts.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	drlog.Configure(drlog.Config{
		Level:   strings.ToLower(cfg.Log.Level),
		Format:  strings.ToLower(cfg.Log.Format),
		Service: "dramarelay",
		Version: version.Version,
	})
	logger := drlog.WithComponent("daemon")

	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config", loader.Path()).
		Str("listen", cfg.Server.Listen).
		Str("relay_path", cfg.Relay.Path).
		Str("cache", cfg.Cache.Backend).
		Msg("starting dramarelay")

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     logger,
		APIHandler: rt.Handler,
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return err
	}
	rt.RegisterShutdownHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader)
	return daemon.NewApp(logger, mgr, holder, rt.ApplyConfig).Run(ctx)
}

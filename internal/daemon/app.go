// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/dramarelay/internal/config"
	drlog "github.com/ManuGH/dramarelay/internal/log"
)

// App ties the Manager to config hot reload: file watcher, reload signal
// and the callback that pushes new catalog credentials into the runtime.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	onReload     func(config.AppConfig)
	reloadSignal os.Signal
}

// NewApp wires an App. onReload receives every config that reloaded
// cleanly and may be nil; cfgHolder may be nil to disable reloading.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, onReload func(config.AppConfig)) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		onReload:     onReload,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run serves until ctx is cancelled or the server fails. Config watching
// is best effort; a watcher that cannot start only logs a warning.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(drlog.FieldEvent, "config.watcher_start_failed").Msg("config watcher not started")
		}
		defer a.cfgHolder.Stop()

		if a.onReload != nil {
			applied := make(chan config.AppConfig, 1)
			a.cfgHolder.RegisterListener(applied)
			g.Go(func() error { return a.applyReloads(ctx, applied) })
		}

		// Notify before the server starts: an unhandled SIGHUP kills the process.
		if a.reloadSignal != nil {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, a.reloadSignal)
			defer signal.Stop(sig)
			g.Go(func() error { return a.reloadOnSignal(ctx, sig) })
		}
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

func (a *App) applyReloads(ctx context.Context, applied <-chan config.AppConfig) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-applied:
			a.onReload(cfg)
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context, sig <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-sig:
			a.logger.Info().
				Str(drlog.FieldEvent, "config.reload_signal").
				Str("signal", s.String()).
				Msg("reloading config")
			if err := a.cfgHolder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(drlog.FieldEvent, "config.reload_failed").Msg("config reload failed, keeping current config")
			}
		}
	}
}

// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	drlog "github.com/ManuGH/dramarelay/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigHolder holds configuration with atomic reloading capability.
// It provides thread-safe access to configuration and supports hot reloading
// from file or a manual trigger.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Reload notifications
	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a new configuration holder with initial config.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current: initial,
		loader:  loader,
		logger:  drlog.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and environment. If loading or
// validation fails the old configuration is kept and an error is returned.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(drlog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(drlog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().
		Str(drlog.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher starts watching the config file for changes. The parent
// directory is watched so atomic replace-by-rename writes are seen. If no
// file is configured this is a no-op.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(drlog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info().
		Str(drlog.FieldEvent, "config.watcher_started").
		Str("path", abs).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, abs)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context, path string) {
	defer close(h.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(drlog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(drlog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			// Debounce: editors emit several events per save.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str(drlog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(drlog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running) and waits for it to exit.
func (h *ConfigHolder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}

// RegisterListener registers a channel to receive config reload notifications.
// The channel will receive the new config whenever a reload succeeds.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all registered listeners (non-blocking).
func (h *ConfigHolder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str(drlog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges logs hot-reloadable differences. Settings outside the catalog
// credentials and log level take effect on restart only.
func (h *ConfigHolder) logChanges(old, newCfg AppConfig) {
	if old.Catalog.DramaBox.BaseURL != newCfg.Catalog.DramaBox.BaseURL {
		h.logger.Info().
			Str("old", old.Catalog.DramaBox.BaseURL).
			Str("new", newCfg.Catalog.DramaBox.BaseURL).
			Msg("config changed: catalog.dramabox.baseUrl")
	}
	if old.Catalog.ShortMax.BaseURL != newCfg.Catalog.ShortMax.BaseURL {
		h.logger.Info().
			Str("old", old.Catalog.ShortMax.BaseURL).
			Str("new", newCfg.Catalog.ShortMax.BaseURL).
			Msg("config changed: catalog.shortmax.baseUrl")
	}
	if old.Catalog.DramaBox.Token != newCfg.Catalog.DramaBox.Token {
		h.logger.Info().Msg("config changed: catalog.dramabox.token")
	}
	if old.Catalog.ShortMax.Token != newCfg.Catalog.ShortMax.Token {
		h.logger.Info().Msg("config changed: catalog.shortmax.token")
	}
	if old.Log.Level != newCfg.Log.Level {
		h.logger.Info().
			Str("old", old.Log.Level).
			Str("new", newCfg.Log.Level).
			Msg("config changed: log.level")
	}
	if old.Server.Listen != newCfg.Server.Listen || old.Relay.Path != newCfg.Relay.Path || old.Cache.Backend != newCfg.Cache.Backend {
		h.logger.Warn().
			Str(drlog.FieldEvent, "config.restart_required").
			Msg("listen address, relay path or cache backend changed; restart to apply")
	}
}

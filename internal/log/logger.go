// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultService is stamped on every entry unless Config.Service overrides it.
const DefaultService = "dramarelay"

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // "trace" .. "error"; unknown or empty means info
	Format  string    // "json" (default) or "console"
	Output  io.Writer // defaults to os.Stdout
	Service string
	Version string
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

// Configure rebuilds the process logger. serve calls it twice: once with safe
// defaults, again after the config file is loaded.
func Configure(cfg Config) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}
	ctx := zerolog.New(out).With().Timestamp().Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	mu.Lock()
	base = ctx.Logger()
	mu.Unlock()
}

// SetLevel changes the global level in place; hot reload uses it.
func SetLevel(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, err
	}
	if lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("empty log level")
	}
	return lvl, nil
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}

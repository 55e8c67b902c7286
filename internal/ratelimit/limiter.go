// SPDX-License-Identifier: MIT

// Package ratelimit paces outbound calls per upstream so a burst of browser
// requests cannot exhaust a catalog API quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/dramarelay/internal/metrics"
)

// ErrRateLimited is returned when a call would have to wait longer than
// MaxWait for a token.
var ErrRateLimited = errors.New("outbound rate limit exceeded")

// Config holds outbound rate limiting configuration.
type Config struct {
	// Rate is the sustained requests per second per upstream. Zero disables limiting.
	Rate  rate.Limit
	Burst int
	// MaxWait bounds how long a caller queues for a token.
	MaxWait time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Rate:    10,
		Burst:   20,
		MaxWait: 2 * time.Second,
	}
}

// Limiter keeps one token bucket per upstream.
type Limiter struct {
	config Config

	mu       sync.Mutex
	upstream map[string]*rate.Limiter
}

// New creates a limiter with the given config.
func New(config Config) *Limiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Limiter{
		config:   config,
		upstream: make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) limiter(upstream string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.upstream[upstream]
	if !ok {
		lim = rate.NewLimiter(l.config.Rate, l.config.Burst)
		l.upstream[upstream] = lim
	}
	return lim
}

// Wait blocks until a call to upstream may proceed. It fails fast with
// ErrRateLimited when the wait would exceed MaxWait.
func (l *Limiter) Wait(ctx context.Context, upstream string) error {
	if l == nil || l.config.Rate <= 0 {
		return nil
	}

	r := l.limiter(upstream).Reserve()
	if !r.OK() {
		metrics.RecordRateLimitWait(upstream, "rejected")
		return fmt.Errorf("%s: %w", upstream, ErrRateLimited)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if l.config.MaxWait > 0 && delay > l.config.MaxWait {
		r.Cancel()
		metrics.RecordRateLimitWait(upstream, "rejected")
		return fmt.Errorf("%s: %w", upstream, ErrRateLimited)
	}

	metrics.RecordRateLimitWait(upstream, "delayed")
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

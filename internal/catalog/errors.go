// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrForbiddenPath is returned for paths outside a provider's allowlist.
	ErrForbiddenPath = errors.New("catalog path not allowed")
	// ErrUnknownPlatform is returned for a platform with no configured provider.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrEpisodeLocked is returned for episodes the provider does not serve.
	ErrEpisodeLocked = errors.New("episode locked")
	// ErrInvalidEpisode is returned for episode numbers below 1.
	ErrInvalidEpisode = errors.New("invalid episode")
	// ErrDramaNotFound is returned when the provider has no record for an id.
	ErrDramaNotFound = errors.New("drama not found")
	// ErrEmptyQuery is returned for a blank search.
	ErrEmptyQuery = errors.New("empty search query")
	// ErrPlaybackUnavailable is returned when the provider answered without a playable URL.
	ErrPlaybackUnavailable = errors.New("playback url unavailable")
	// ErrUpstreamStatus matches every StatusError.
	ErrUpstreamStatus = errors.New("catalog upstream returned error status")
)

// StatusError carries a non-2xx provider status back to the client.
type StatusError struct {
	Platform string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s: upstream status %d", e.Platform, e.Status)
}

func (e *StatusError) Is(target error) bool { return target == ErrUpstreamStatus }

// tripsBreaker reports whether err should count against a provider breaker.
// Client-side statuses say nothing about provider health.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

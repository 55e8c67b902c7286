// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTarget is returned when the request carries no url parameter.
	ErrMissingTarget = errors.New("missing url")

	// ErrForbiddenTarget is returned when the target host is outside the
	// configured outbound allowlist.
	ErrForbiddenTarget = errors.New("relay target not allowed")

	// ErrRelayUpstream matches every UpstreamError via errors.Is.
	ErrRelayUpstream = errors.New("relay upstream failed")
)

// UpstreamError describes a failed upstream fetch: transport errors, timeouts,
// non-2xx statuses, body read errors and oversize manifests.
type UpstreamError struct {
	Target string // sanitized upstream URL
	Status int    // upstream status, 0 when no response was received
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("relay upstream %s: status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("relay upstream %s: %v", e.Target, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrRelayUpstream as a match so callers need not know the type.
func (e *UpstreamError) Is(target error) bool { return target == ErrRelayUpstream }

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrAliasConflict is returned when a canonical key and its legacy alias
	// are both set to different values.
	ErrAliasConflict = errors.New("conflicting environment aliases")

	// ErrInvalidEnv is returned when an environment value cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment value")
)

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the gateway configuration.
//
// Precedence is defaults, then the optional YAML file (strict: unknown keys
// and extra documents are rejected), then environment variables. The
// canonical environment keys carry the DRAMARELAY_ prefix; the short keys of
// the original Node deployment (PORT, API_URL, AUTH_TOKEN, SM_API_URL,
// SM_AUTH_TOKEN) are accepted as aliases.
package config

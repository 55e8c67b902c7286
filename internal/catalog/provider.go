// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"strings"
)

// Platform names.
const (
	PlatformDramaBox = "dramabox"
	PlatformShortMax = "shortmax"
)

// Default provider endpoints.
const (
	DefaultDramaBoxURL = "https://restxdb.onrender.com/api"
	DefaultShortMaxURL = "https://captain.sapimu.au/shortmax/api/v1"
	ShortMaxUserAgent  = "ShortMax-App/1.0"
)

// Provider describes one upstream catalog API.
type Provider struct {
	Name    string
	BaseURL string
	// Token is sent as a bearer token and never reaches the browser.
	Token     string
	UserAgent string
	// AllowedPrefixes lists the path prefixes that may be forwarded.
	AllowedPrefixes []string
	// CacheControl is set on successful pass-through responses when non-empty.
	CacheControl string
}

// DramaBox returns the DramaBox provider definition.
func DramaBox(baseURL, token string) Provider {
	if baseURL == "" {
		baseURL = DefaultDramaBoxURL
	}
	return Provider{
		Name:    PlatformDramaBox,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		AllowedPrefixes: []string{
			"/foryou/", "/new/", "/rank/", "/search/", "/suggest/", "/classify", "/chapters/", "/watch/",
		},
	}
}

// ShortMax returns the ShortMax provider definition.
func ShortMax(baseURL, token string) Provider {
	if baseURL == "" {
		baseURL = DefaultShortMaxURL
	}
	return Provider{
		Name:            PlatformShortMax,
		BaseURL:         strings.TrimRight(baseURL, "/"),
		Token:           token,
		UserAgent:       ShortMaxUserAgent,
		AllowedPrefixes: []string{"/foryou", "/detail/", "/play/", "/search", "/feed/", "/home"},
		CacheControl:    "public, max-age=300",
	}
}

// Allows reports whether the decoded path may be forwarded to the provider.
// Dot segments, empty segments and anything that would end the path
// upstream (query or fragment delimiters, backslashes) are rejected.
func (p Provider) Allows(path string) bool {
	if strings.Contains(path, "..") || strings.Contains(path, "//") {
		return false
	}
	if strings.ContainsAny(path, "?#\\") {
		return false
	}
	for _, prefix := range p.AllowedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"net/url"
	"sort"
	"strings"
)

// SanitizeURL makes an upstream target safe to log. Credentials and the
// fragment are dropped; query values are dropped too (CDN segment URLs carry
// signatures there) but the key names are kept so logs still show which
// parameters were present. Relay targets without a scheme are accepted.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	keys := make([]string, 0)
	for k := range u.Query() {
		keys = append(keys, k)
	}
	u.RawQuery = ""
	out := u.String()
	if len(keys) == 0 {
		return out
	}
	sort.Strings(keys)
	return out + "?" + strings.Join(keys, "=&") + "="
}

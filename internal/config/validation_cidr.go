// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net/netip"
	"strings"

	"github.com/ManuGH/dramarelay/internal/validate"
)

// forbidCatchAll rejects whitelist entries that would exempt every client,
// such as 0.0.0.0/0, ::/0 or an unspecified address. Syntax errors are
// reported by validate.IPOrCIDR.
func forbidCatchAll(v *validate.Validator, field string, entries []string) {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			if p.Bits() == 0 {
				v.AddError(field, "catch-all network is not allowed", entry)
			} else if p.Addr().IsUnspecified() {
				v.AddError(field, "unspecified address is not allowed", entry)
			}
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil && addr.IsUnspecified() {
			v.AddError(field, "unspecified address is not allowed", entry)
		}
	}
}

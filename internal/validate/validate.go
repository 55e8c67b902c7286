// SPDX-License-Identifier: MIT

// Package validate accumulates field-level configuration errors so a bad
// config file is reported in one pass rather than one field at a time.
package validate

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is a single failed check. Field uses the YAML path ("relay.path").
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects Errors. The zero value is not usable; call New.
type Validator struct {
	errors []Error
}

// ValidationError is what Validator.Err returns when any check failed.
type ValidationError struct {
	errors []Error
}

func New() *Validator {
	return &Validator{errors: []Error{}}
}

func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Errors() []Error { return v.errors }

// Err snapshots the collected errors, or returns nil when there are none.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	errs := make([]error, len(e.errors))
	for i, fe := range e.errors {
		errs[i] = fe
	}
	return strings.ReplaceAll(errors.Join(errs...).Error(), "\n", "; ")
}

// URL requires an absolute URL with a host and one of allowedSchemes.
// Credentials in the URL are rejected; tokens have their own config fields.
func (v *Validator) URL(field, value string, allowedSchemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	switch {
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
	case u.User != nil:
		v.AddError(field, "URL must not embed credentials", u.Redacted())
	case len(allowedSchemes) > 0 && !slices.Contains(allowedSchemes, u.Scheme):
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, allowedSchemes), value)
	}
}

// ListenAddr validates host:port; the host may be empty, a hostname or an IP.
func (v *Validator) ListenAddr(field, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	if host != "" && strings.ContainsAny(host, "/ ") {
		v.AddError(field, "invalid listen host", addr)
		return
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		v.AddError(field, "port must be numeric", addr)
		return
	}
	v.Port(field, n)
}

func (v *Validator) Port(field string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(field, fmt.Sprintf("port must be between 1 and 65535, got %d", port), port)
	}
}

// Range checks minVal <= value <= maxVal.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value), value)
	}
}

func (v *Validator) Fraction(field string, value float64) {
	if value < 0 || value > 1 {
		v.AddError(field, fmt.Sprintf("value must be between 0 and 1, got %g", value), value)
	}
}

func (v *Validator) Duration(field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, fmt.Sprintf("duration must be positive, got %s", d), d)
	}
}

// ExistingDirectory is used for the static UI directory.
func (v *Validator) ExistingDirectory(field, path string) {
	if strings.Contains(path, "..") {
		v.AddError(field, "path contains traversal sequences (..)", path)
		return
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		v.AddError(field, "directory does not exist", path)
	case err != nil:
		v.AddError(field, fmt.Sprintf("cannot access directory: %v", err), path)
	case !info.IsDir():
		v.AddError(field, "path is not a directory", path)
	}
}

func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf is case sensitive; normalise before calling when it should not be.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %d", value), value)
	}
}

// IPOrCIDR checks every non-blank entry parses as an address or a prefix.
func (v *Validator) IPOrCIDR(field string, entries []string) {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, err := netip.ParseAddr(entry); err == nil {
			continue
		}
		if _, err := netip.ParsePrefix(entry); err == nil {
			continue
		}
		v.AddError(field, "must be a valid IP or CIDR", entry)
	}
}

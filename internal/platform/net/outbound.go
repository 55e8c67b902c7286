// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrOutboundNotAllowed indicates the URL did not match the allowlist.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// HostPolicy restricts which upstream hosts may be fetched on behalf of a client.
//
// Host entries match exactly; an entry with a leading dot (".cdn.example") also
// matches every subdomain. An empty Hosts list allows every host, which is the
// behaviour of an open relay.
type HostPolicy struct {
	Hosts   []string
	Schemes []string

	hosts    map[string]struct{}
	suffixes []string
}

// NewHostPolicy validates and normalises the allowlist.
func NewHostPolicy(hosts, schemes []string) (*HostPolicy, error) {
	p := &HostPolicy{
		Hosts:   hosts,
		Schemes: schemes,
		hosts:   make(map[string]struct{}, len(hosts)),
	}
	if len(p.Schemes) == 0 {
		p.Schemes = []string{"http", "https"}
	}
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		suffix := strings.HasPrefix(h, ".")
		normalized, err := NormalizeHost(strings.TrimPrefix(h, "."))
		if err != nil {
			return nil, err
		}
		if suffix {
			p.suffixes = append(p.suffixes, "."+normalized)
			continue
		}
		p.hosts[normalized] = struct{}{}
	}
	return p, nil
}

// Open reports whether the policy allows every host.
func (p *HostPolicy) Open() bool {
	return p == nil || (len(p.hosts) == 0 && len(p.suffixes) == 0)
}

// Check verifies u against the policy.
func (p *HostPolicy) Check(u *url.URL) error {
	if u == nil {
		return fmt.Errorf("outbound url empty")
	}
	if u.Host == "" {
		return fmt.Errorf("missing url host")
	}
	if u.User != nil {
		return fmt.Errorf("userinfo not allowed")
	}
	if p == nil {
		return nil
	}

	scheme := strings.ToLower(u.Scheme)
	if !schemeAllowed(p.Schemes, scheme) {
		return fmt.Errorf("scheme %q not allowed: %w", scheme, ErrOutboundNotAllowed)
	}
	if p.Open() {
		return nil
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return err
	}
	if _, ok := p.hosts[host]; ok {
		return nil
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".") {
			return nil
		}
	}
	return fmt.Errorf("host %q: %w", host, ErrOutboundNotAllowed)
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func schemeAllowed(allowed []string, scheme string) bool {
	for _, s := range allowed {
		if strings.EqualFold(strings.TrimSpace(s), scheme) {
			return true
		}
	}
	return false
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "CDN.Example.com", want: "cdn.example.com"},
		{in: "cdn.example.com.", want: "cdn.example.com"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "[::1]", want: "::1"},
		{in: "10.0.0.1", want: "10.0.0.1"},
		{in: "", wantErr: true},
		{in: "https://cdn.example.com", wantErr: true},
		{in: "cdn.example.com/path", wantErr: true},
		{in: "user@cdn.example.com", wantErr: true},
		{in: "cdn.example.com:443", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeHost(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHostPolicy_OpenAllowsEverything(t *testing.T) {
	p, err := NewHostPolicy(nil, nil)
	require.NoError(t, err)
	assert.True(t, p.Open())
	assert.NoError(t, p.Check(mustURL(t, "https://any.cdn/seg.ts")))
	assert.NoError(t, p.Check(mustURL(t, "http://other.cdn/seg.ts")))
}

func TestHostPolicy_RejectsSchemeAndUserinfo(t *testing.T) {
	p, err := NewHostPolicy(nil, nil)
	require.NoError(t, err)

	err = p.Check(mustURL(t, "ftp://any.cdn/seg.ts"))
	assert.True(t, errors.Is(err, ErrOutboundNotAllowed))

	assert.Error(t, p.Check(mustURL(t, "https://user:pw@any.cdn/seg.ts")))
}

func TestHostPolicy_ExactAndSuffix(t *testing.T) {
	p, err := NewHostPolicy([]string{"video.example.com", ".akamaized.net"}, []string{"https"})
	require.NoError(t, err)
	assert.False(t, p.Open())

	assert.NoError(t, p.Check(mustURL(t, "https://VIDEO.example.com/a.m3u8")))
	assert.NoError(t, p.Check(mustURL(t, "https://edge-7.akamaized.net/a.ts")))
	assert.NoError(t, p.Check(mustURL(t, "https://akamaized.net/a.ts")))

	err = p.Check(mustURL(t, "https://evil.example.org/a.ts"))
	assert.ErrorIs(t, err, ErrOutboundNotAllowed)

	err = p.Check(mustURL(t, "https://notakamaized.net/a.ts"))
	assert.ErrorIs(t, err, ErrOutboundNotAllowed)

	err = p.Check(mustURL(t, "http://video.example.com/a.m3u8"))
	assert.ErrorIs(t, err, ErrOutboundNotAllowed)
}

func TestSanitizeURL(t *testing.T) {
	tests := map[string]string{
		"https://u:p@cdn.example/seg.ts?sig=abc#frag":  "https://cdn.example/seg.ts?sig=",
		"cdn.example/hls/index.m3u8?token=x&expires=1": "cdn.example/hls/index.m3u8?expires=&token=",
		"https://cdn.example/plain.ts":                 "https://cdn.example/plain.ts",
		"://bad":                                       "invalid-url-redacted",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeURL(in), in)
	}
}

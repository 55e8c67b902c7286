// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the outbound HTTP clients used towards upstream CDNs and
// catalog APIs.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4

	// A player buffering ahead opens many segment requests against one CDN host.
	streamingMaxIdleConns        = 128
	streamingMaxIdleConnsPerHost = 32
	streamingIdleConnTimeout     = 90 * time.Second
)

// NewClient returns a hardened HTTP client for JSON calls. The timeout bounds
// the whole exchange including the body read, and the wait for response
// headers may use all of it: catalog upstreams on cold-starting hosts are
// slow to answer but quick to connect.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(newTransport(timeout)),
	}
}

// NewStreamingClient returns a client for media relaying. It carries no total
// Client.Timeout because segment bodies are streamed for as long as the player
// reads them; headerTimeout bounds connect, TLS and time-to-headers instead.
// Callers bound manifest reads with a context deadline.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultClientTimeout
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(newStreamingTransport(headerTimeout)),
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	dialTimeout := min(timeout, defaultDialTimeout)
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}

func newStreamingTransport(headerTimeout time.Duration) *http.Transport {
	dialTimeout := min(headerTimeout, defaultDialTimeout)
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          streamingMaxIdleConns,
		MaxIdleConnsPerHost:   streamingMaxIdleConnsPerHost,
		IdleConnTimeout:       streamingIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
		// Segments are already compressed; keep byte-for-byte passthrough.
		DisableCompression: true,
	}
}

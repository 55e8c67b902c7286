// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay implements the HLS manifest and segment relay.
//
// A relay request carries the upstream target with its https scheme stripped.
// Playlists are fetched in full and every segment or sub-playlist reference is
// rewritten to point back through the relay path; everything else is streamed
// through byte-for-byte.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	drlog "github.com/ManuGH/dramarelay/internal/log"
	"github.com/ManuGH/dramarelay/internal/metrics"
	platformnet "github.com/ManuGH/dramarelay/internal/platform/net"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultUpstreamBaseURL  = "https://"
	DefaultRequestTimeout   = 15 * time.Second
	DefaultRelayPath        = "/video"
	DefaultManifestMaxAge   = 5 * time.Minute
	DefaultSegmentMaxAge    = time.Hour
	DefaultMaxManifestBytes = 4 << 20

	// ContentTypeManifest is served for every rewritten playlist.
	ContentTypeManifest = "application/vnd.apple.mpegurl"
	// ContentTypeSegment is the fallback for segments without a declared type.
	ContentTypeSegment = "video/mp2t"
)

// Upstream response headers copied onto segment responses.
var passthroughHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
}

// Config holds the relay settings.
type Config struct {
	// UpstreamBaseURL is the scheme prepended to scheme-less targets,
	// "https://" or "http://". Targets always carry their own host.
	UpstreamBaseURL string
	// RequestTimeout bounds a whole manifest fetch and the time-to-headers of
	// a segment fetch. Segment bodies stream without a total deadline.
	RequestTimeout time.Duration
	// RelayPath is the path rewritten references point to.
	RelayPath string

	ManifestMaxAge   time.Duration
	SegmentMaxAge    time.Duration
	MaxManifestBytes int64
	UserAgent        string

	// AllowedHosts restricts upstream hosts. Empty allows every host.
	AllowedHosts []string
}

func (c Config) withDefaults() Config {
	if c.UpstreamBaseURL == "" {
		c.UpstreamBaseURL = DefaultUpstreamBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RelayPath == "" {
		c.RelayPath = DefaultRelayPath
	}
	if c.ManifestMaxAge <= 0 {
		c.ManifestMaxAge = DefaultManifestMaxAge
	}
	if c.SegmentMaxAge <= 0 {
		c.SegmentMaxAge = DefaultSegmentMaxAge
	}
	if c.MaxManifestBytes <= 0 {
		c.MaxManifestBytes = DefaultMaxManifestBytes
	}
	return c
}

// Relay fetches manifests and segments on behalf of a client.
type Relay struct {
	cfg    Config
	client *http.Client
	policy *platformnet.HostPolicy
	logger zerolog.Logger
}

// New creates a Relay. client must not carry a total Client.Timeout or long
// segments would be cut off; see httpx.NewStreamingClient.
func New(cfg Config, client *http.Client, logger zerolog.Logger) (*Relay, error) {
	if client == nil {
		return nil, errors.New("relay: http client is required")
	}
	cfg = cfg.withDefaults()
	cfg.UpstreamBaseURL = strings.ToLower(cfg.UpstreamBaseURL)
	if cfg.UpstreamBaseURL != schemeHTTPS && cfg.UpstreamBaseURL != schemeHTTP {
		return nil, fmt.Errorf("relay: upstream base %q must be %q or %q", cfg.UpstreamBaseURL, schemeHTTPS, schemeHTTP)
	}
	if !strings.HasPrefix(cfg.RelayPath, "/") {
		return nil, fmt.Errorf("relay: path %q must start with /", cfg.RelayPath)
	}
	policy, err := platformnet.NewHostPolicy(cfg.AllowedHosts, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: allowed hosts: %w", err)
	}
	return &Relay{
		cfg:    cfg,
		client: client,
		policy: policy,
		logger: logger.With().Str(drlog.FieldComponent, "relay").Logger(),
	}, nil
}

// Config returns the effective configuration.
func (r *Relay) Config() Config { return r.cfg }

// Response is a relay result ready to be written to the client. The caller
// must close Body.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser

	// Kind is metrics.KindManifest or metrics.KindSegment.
	Kind string
	// Rewritten counts the manifest lines pointed back at the relay.
	Rewritten int
}

// FetchOption customises a single Fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	rangeHeader string
}

// WithRange forwards a client Range header on segment fetches.
func WithRange(value string) FetchOption {
	return func(o *fetchOptions) { o.rangeHeader = value }
}

// Fetch relays target. target is the scheme-stripped upstream URL taken from
// the url parameter of a relay request.
func (r *Relay) Fetch(ctx context.Context, target string, opts ...FetchOption) (*Response, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrMissingTarget
	}

	upstream, err := r.upstreamURL(target)
	if err != nil {
		return nil, err
	}

	if IsManifestTarget(target) {
		return r.fetchManifest(ctx, target, upstream)
	}
	return r.fetchSegment(ctx, upstream, o)
}

func (r *Relay) upstreamURL(target string) (*url.URL, error) {
	raw := target
	if schemeEnd(target) == 0 {
		raw = r.cfg.UpstreamBaseURL + target
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &UpstreamError{Target: platformnet.SanitizeURL(raw), Err: err}
	}
	if err := r.policy.Check(u); err != nil {
		if errors.Is(err, platformnet.ErrOutboundNotAllowed) {
			return nil, fmt.Errorf("%w: %v", ErrForbiddenTarget, err)
		}
		return nil, &UpstreamError{Target: platformnet.SanitizeURL(raw), Err: err}
	}
	return u, nil
}

func (r *Relay) newRequest(ctx context.Context, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}
	return req, nil
}

func (r *Relay) fetchManifest(ctx context.Context, target string, u *url.URL) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	sanitized := platformnet.SanitizeURL(u.String())
	req, err := r.newRequest(ctx, u)
	if err != nil {
		return nil, &UpstreamError{Target: sanitized, Err: err}
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Target: sanitized, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveRelayUpstream(metrics.KindManifest, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Target: sanitized, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxManifestBytes+1))
	if err != nil {
		return nil, &UpstreamError{Target: sanitized, Err: fmt.Errorf("read manifest: %w", err)}
	}
	if int64(len(body)) > r.cfg.MaxManifestBytes {
		return nil, &UpstreamError{Target: sanitized, Err: fmt.Errorf("manifest exceeds %d bytes", r.cfg.MaxManifestBytes)}
	}

	text, rewritten := rewriteManifest(string(body), target, r.cfg.RelayPath, r.cfg.UpstreamBaseURL)

	header := make(http.Header)
	header.Set("Content-Type", ContentTypeManifest)
	header.Set("Cache-Control", cacheControl(r.cfg.ManifestMaxAge))
	header.Set("Content-Length", strconv.Itoa(len(text)))

	return &Response{
		Status:    http.StatusOK,
		Header:    header,
		Body:      io.NopCloser(strings.NewReader(text)),
		Kind:      metrics.KindManifest,
		Rewritten: rewritten,
	}, nil
}

func (r *Relay) fetchSegment(ctx context.Context, u *url.URL, o fetchOptions) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	sanitized := platformnet.SanitizeURL(u.String())

	req, err := r.newRequest(ctx, u)
	if err != nil {
		cancel()
		return nil, &UpstreamError{Target: sanitized, Err: err}
	}
	if o.rangeHeader != "" {
		req.Header.Set("Range", o.rangeHeader)
	}

	// Only the wait for headers is bounded; the body may stream for longer.
	headerTimer := time.AfterFunc(r.cfg.RequestTimeout, cancel)
	start := time.Now()
	resp, err := r.client.Do(req)
	if !headerTimer.Stop() && err == nil {
		_ = resp.Body.Close()
		err = fmt.Errorf("no response headers within %s: %w", r.cfg.RequestTimeout, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, &UpstreamError{Target: sanitized, Err: err}
	}
	metrics.ObserveRelayUpstream(metrics.KindSegment, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Target: sanitized, Status: resp.StatusCode}
	}

	header := make(http.Header)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = ContentTypeSegment
	}
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", cacheControl(r.cfg.SegmentMaxAge))
	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	status := http.StatusOK
	if resp.StatusCode == http.StatusPartialContent {
		status = http.StatusPartialContent
	}

	return &Response{
		Status: status,
		Header: header,
		Body:   &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		Kind:   metrics.KindSegment,
	}, nil
}

// cancelOnClose releases the per-request context once the body is done.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func cacheControl(maxAge time.Duration) string {
	return "public, max-age=" + strconv.Itoa(int(maxAge/time.Second))
}

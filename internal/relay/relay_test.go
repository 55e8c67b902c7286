// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream is a call-counting RoundTripper standing in for the CDN.
type fakeUpstream struct {
	mu       sync.Mutex
	requests []*http.Request
	respond  func(*http.Request) (*http.Response, error)
}

func (f *fakeUpstream) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeUpstream) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func respondWith(status int, header http.Header, body string) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		if header == nil {
			header = make(http.Header)
		}
		return &http.Response{
			StatusCode: status,
			Header:     header.Clone(),
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func newTestRelay(t *testing.T, cfg Config, upstream *fakeUpstream) *Relay {
	t.Helper()
	r, err := New(cfg, &http.Client{Transport: upstream}, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, resp *Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(Config{}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_RejectsRelativeRelayPath(t *testing.T) {
	_, err := New(Config{RelayPath: "video"}, &http.Client{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_UpstreamBaseMustBeScheme(t *testing.T) {
	for _, base := range []string{"https://mirror.example/", "cdn.example", "ftp://"} {
		_, err := New(Config{UpstreamBaseURL: base}, &http.Client{}, zerolog.Nop())
		assert.Error(t, err, base)
	}

	r, err := New(Config{UpstreamBaseURL: "HTTP://"}, &http.Client{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "http://", r.Config().UpstreamBaseURL)
}

func TestNew_AppliesDefaults(t *testing.T) {
	r := newTestRelay(t, Config{}, &fakeUpstream{})
	cfg := r.Config()
	assert.Equal(t, "https://", cfg.UpstreamBaseURL)
	assert.Equal(t, "/video", cfg.RelayPath)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(DefaultMaxManifestBytes), cfg.MaxManifestBytes)
}

func TestFetch_MissingTargetMakesNoUpstreamCall(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, "")}
	r := newTestRelay(t, Config{}, upstream)

	for _, target := range []string{"", "   "} {
		_, err := r.Fetch(context.Background(), target)
		assert.ErrorIs(t, err, ErrMissingTarget)
	}
	assert.Zero(t, upstream.calls())
}

func TestFetch_ManifestIsRewritten(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK,
		http.Header{"Content-Type": []string{"text/plain"}}, fixtureManifest)}
	r := newTestRelay(t, Config{}, upstream)

	resp, err := r.Fetch(context.Background(), "example.cdn/playlist.m3u8")
	require.NoError(t, err)

	body := readAll(t, resp)
	assert.Contains(t, body, "/video?url=example.cdn%2Fsegment0.ts\n")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/vnd.apple.mpegurl", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
	assert.Equal(t, 3, resp.Rewritten)

	req := upstream.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "https://example.cdn/playlist.m3u8", req.URL.String())
	assert.Equal(t, http.MethodGet, req.Method)
}

func TestFetch_SegmentPassesContentType(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK,
		http.Header{"Content-Type": []string{"video/mp4"}, "Content-Length": []string{"5"}}, "\x00\x01\x02\x03\x04")}
	r := newTestRelay(t, Config{}, upstream)

	resp, err := r.Fetch(context.Background(), "example.cdn/video.mp4")
	require.NoError(t, err)

	assert.Equal(t, "\x00\x01\x02\x03\x04", readAll(t, resp))
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, "5", resp.Header.Get("Content-Length"))
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
}

func TestFetch_SegmentContentTypeFallback(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, "ts-bytes")}
	r := newTestRelay(t, Config{}, upstream)

	resp, err := r.Fetch(context.Background(), "example.cdn/seg0.ts")
	require.NoError(t, err)
	assert.Equal(t, "ts-bytes", readAll(t, resp))
	assert.Equal(t, "video/mp2t", resp.Header.Get("Content-Type"))
}

func TestFetch_ForwardsRangeAndPartialContent(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusPartialContent, http.Header{
		"Content-Type":  []string{"video/mp4"},
		"Content-Range": []string{"bytes 0-3/100"},
		"Accept-Ranges": []string{"bytes"},
		"Set-Cookie":    []string{"session=leak"},
	}, "abcd")}
	r := newTestRelay(t, Config{}, upstream)

	resp, err := r.Fetch(context.Background(), "example.cdn/ep1.mp4", WithRange("bytes=0-3"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", readAll(t, resp))

	assert.Equal(t, http.StatusPartialContent, resp.Status)
	assert.Equal(t, "bytes 0-3/100", resp.Header.Get("Content-Range"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
	assert.Equal(t, "bytes=0-3", upstream.lastRequest().Header.Get("Range"))
}

func TestFetch_ExplicitHTTPTargetUsedVerbatim(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, "x")}
	r := newTestRelay(t, Config{}, upstream)

	resp, err := r.Fetch(context.Background(), "http://plain.cdn/seg.ts")
	require.NoError(t, err)
	readAll(t, resp)
	assert.Equal(t, "http://plain.cdn/seg.ts", upstream.lastRequest().URL.String())
}

func TestFetch_UserAgent(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, "x")}
	r := newTestRelay(t, Config{UserAgent: "dramarelay/test"}, upstream)

	resp, err := r.Fetch(context.Background(), "cdn/seg.ts")
	require.NoError(t, err)
	readAll(t, resp)
	assert.Equal(t, "dramarelay/test", upstream.lastRequest().Header.Get("User-Agent"))
}

func TestFetch_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		respond    func(*http.Request) (*http.Response, error)
		wantStatus int
	}{
		{
			name:    "transport error manifest",
			target:  "cdn/list.m3u8",
			respond: func(*http.Request) (*http.Response, error) { return nil, errors.New("dial tcp: refused") },
		},
		{
			name:    "transport error segment",
			target:  "cdn/seg.ts",
			respond: func(*http.Request) (*http.Response, error) { return nil, errors.New("tls: bad certificate") },
		},
		{
			name:       "non-2xx manifest",
			target:     "cdn/list.m3u8",
			respond:    respondWith(http.StatusNotFound, nil, "nope"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "non-2xx segment",
			target:     "cdn/seg.ts",
			respond:    respondWith(http.StatusBadGateway, nil, ""),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &fakeUpstream{respond: tt.respond}
			r := newTestRelay(t, Config{}, upstream)

			_, err := r.Fetch(context.Background(), tt.target)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRelayUpstream)

			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.wantStatus, upErr.Status)
			assert.Equal(t, 1, upstream.calls())
		})
	}
}

func TestFetch_ManifestSizeLimit(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, strings.Repeat("seg.ts\n", 10))}
	r := newTestRelay(t, Config{MaxManifestBytes: 16}, upstream)

	_, err := r.Fetch(context.Background(), "cdn/list.m3u8")
	assert.ErrorIs(t, err, ErrRelayUpstream)
}

func TestFetch_AllowedHosts(t *testing.T) {
	upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, "x")}
	r := newTestRelay(t, Config{AllowedHosts: []string{".good.cdn"}}, upstream)

	_, err := r.Fetch(context.Background(), "evil.cdn/seg.ts")
	assert.ErrorIs(t, err, ErrForbiddenTarget)
	assert.Zero(t, upstream.calls())

	resp, err := r.Fetch(context.Background(), "edge.good.cdn/seg.ts")
	require.NoError(t, err)
	readAll(t, resp)
	assert.Equal(t, 1, upstream.calls())
}

func TestFetch_SegmentHeaderTimeout(t *testing.T) {
	upstream := &fakeUpstream{respond: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	r := newTestRelay(t, Config{RequestTimeout: 20 * time.Millisecond}, upstream)

	start := time.Now()
	_, err := r.Fetch(context.Background(), "cdn/seg.ts")
	assert.ErrorIs(t, err, ErrRelayUpstream)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetch_SegmentBodyOutlivesRequestTimeout(t *testing.T) {
	var reqCtx context.Context
	pr, pw := io.Pipe()
	upstream := &fakeUpstream{respond: func(req *http.Request) (*http.Response, error) {
		reqCtx = req.Context()
		return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: pr, Request: req}, nil
	}}
	r := newTestRelay(t, Config{RequestTimeout: 20 * time.Millisecond}, upstream)

	resp, err := r.Fetch(context.Background(), "cdn/slow.ts")
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_, _ = pw.Write([]byte("late-bytes"))
		_ = pw.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "late-bytes", string(b))
	assert.NoError(t, reqCtx.Err())

	require.NoError(t, resp.Body.Close())
	assert.ErrorIs(t, reqCtx.Err(), context.Canceled)
}

func TestFetch_ClientCancelPropagates(t *testing.T) {
	upstream := &fakeUpstream{respond: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	r := newTestRelay(t, Config{RequestTimeout: time.Minute}, upstream)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Fetch(ctx, "cdn/list.m3u8")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrRelayUpstream)
}

// Every rewritten reference, requested again through the relay, must reach
// the upstream URL the manifest named.
func TestFetch_RewrittenReferencesRoundTrip(t *testing.T) {
	manifest := strings.Join([]string{
		"#EXTM3U",
		"/abs/seg0.ts",
		"https://other.cdn/seg1.ts",
		"http://plain.cdn/seg2.ts",
		"//sr.cdn/seg3.ts",
		"rel/seg4.ts",
		"",
	}, "\n")

	tests := []struct {
		name   string
		base   string
		target string
		want   []string
	}{
		{
			name:   "https base",
			base:   "https://",
			target: "cdn.example/live/playlist.m3u8",
			want: []string{
				"https://cdn.example/abs/seg0.ts",
				"https://other.cdn/seg1.ts",
				"http://plain.cdn/seg2.ts",
				"https://sr.cdn/seg3.ts",
				"https://cdn.example/live/rel/seg4.ts",
			},
		},
		{
			name:   "http base",
			base:   "http://",
			target: "cdn.example/live/playlist.m3u8",
			want: []string{
				"http://cdn.example/abs/seg0.ts",
				"https://other.cdn/seg1.ts",
				"http://plain.cdn/seg2.ts",
				"http://sr.cdn/seg3.ts",
				"http://cdn.example/live/rel/seg4.ts",
			},
		},
		{
			name:   "explicit http manifest on https base",
			base:   "https://",
			target: "http://cdn.example/live/playlist.m3u8",
			want: []string{
				"http://cdn.example/abs/seg0.ts",
				"https://other.cdn/seg1.ts",
				"http://plain.cdn/seg2.ts",
				"http://sr.cdn/seg3.ts",
				"http://cdn.example/live/rel/seg4.ts",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &fakeUpstream{respond: respondWith(http.StatusOK, nil, manifest)}
			r := newTestRelay(t, Config{UpstreamBaseURL: tt.base}, upstream)

			resp, err := r.Fetch(context.Background(), tt.target)
			require.NoError(t, err)
			body := readAll(t, resp)
			require.Equal(t, len(tt.want), resp.Rewritten)

			var got []string
			for _, line := range strings.Split(body, "\n") {
				rest, ok := strings.CutPrefix(line, "/video?url=")
				if !ok {
					continue
				}
				target, err := url.QueryUnescape(rest)
				require.NoError(t, err)

				seg, err := r.Fetch(context.Background(), target)
				require.NoError(t, err)
				readAll(t, seg)
				got = append(got, upstream.lastRequest().URL.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/dramarelay/internal/cache"
)

// fakeAPI is a call-counting RoundTripper keyed by request path.
type fakeAPI struct {
	mu       sync.Mutex
	requests []*http.Request
	handle   func(*http.Request) (int, string, error)
}

func (f *fakeAPI) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	status, body, err := f.handle(req)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func staticAPI(status int, body string) *fakeAPI {
	return &fakeAPI{handle: func(*http.Request) (int, string, error) { return status, body, nil }}
}

func newTestClient(t *testing.T, api *fakeAPI, store cache.Cache) *Client {
	t.Helper()
	if store == nil {
		store = cache.NewMemoryCache(0)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewClient(&http.Client{Transport: api}, store, nil, ClientConfig{
		CacheTTL:         time.Minute,
		BreakerThreshold: 2,
		BreakerReset:     time.Minute,
	}, zerolog.Nop(),
		DramaBox("https://db.example/api", "db-token"),
		ShortMax("https://sm.example/v1", "sm-token"),
	)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dramarelay/internal/api/middleware"
	"github.com/ManuGH/dramarelay/internal/cache"
	"github.com/ManuGH/dramarelay/internal/catalog"
	"github.com/ManuGH/dramarelay/internal/health"
	"github.com/ManuGH/dramarelay/internal/relay"
)

const (
	testManifest = "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nseg0.ts\n#EXT-X-ENDLIST\n"
	listingBody  = `{"data":{"list":[{"bookId":41000,"bookName":" Love Contract ","cover":"https://img.example/1.jpg","chapterCount":"60","tags":["CEO"]}],"isMore":true}}`
	watchBody    = `{"data":{"videoUrl":"https://cdn.example/e1.mp4","cover":"https://img.example/1.jpg",` +
		`"qualities":[{"quality":540,"videoPath":"https://cdn.example/540.mp4"},{"quality":720,"videoPath":"https://cdn.example/720.mp4"}]}}`
)

// fakeOrigin answers every outbound request (CDN and catalog providers) by host and path.
type fakeOrigin struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]string
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{
		hits: make(map[string]int),
		routes: map[string]string{
			"cdn.example/show/index.m3u8":   testManifest,
			"cdn.example/show/seg0.ts":      "TSDATA",
			"db.example/api/foryou/1":       listingBody,
			"db.example/api/watch/41000/0":  watchBody,
			"db.example/api/search/1":       listingBody,
			"db.example/api/rank/1":         listingBody,
			"db.example/api/chapters/41000": `{"data":{"chapterList":[{},{},{}]}}`,
			"sm.example/v1/home":            `{"data":[]}`,
		},
	}
}

func (f *fakeOrigin) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Host + req.URL.Path
	f.mu.Lock()
	f.hits[key]++
	body, ok := f.routes[key]
	f.mu.Unlock()

	status := http.StatusOK
	if !ok {
		status, body = http.StatusNotFound, `{"message":"not found"}`
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeOrigin) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

type testEnv struct {
	origin  *fakeOrigin
	health  *health.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T, staticDir string) *testEnv {
	t.Helper()
	return newTestEnvWithStack(t, staticDir, middleware.StackConfig{EnableMetrics: true, EnableSecurityHeaders: true})
}

func newTestEnvWithStack(t *testing.T, staticDir string, stack middleware.StackConfig) *testEnv {
	t.Helper()
	origin := newFakeOrigin()
	client := &http.Client{Transport: origin}

	rl, err := relay.New(relay.Config{RequestTimeout: 5 * time.Second}, client, zerolog.Nop())
	require.NoError(t, err)

	store := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = store.Close() })
	cc := catalog.NewClient(client, store, nil, catalog.ClientConfig{
		CacheTTL:         time.Minute,
		BreakerThreshold: 5,
		BreakerReset:     time.Minute,
	}, zerolog.Nop(),
		catalog.DramaBox("https://db.example/api", "db-token"),
		catalog.ShortMax("https://sm.example/v1", "sm-token"),
	)
	cat := catalog.NewCatalog(
		catalog.NewDramaBoxAdapter(cc),
		catalog.NewShortMaxAdapter(cc, rl.Config().RelayPath),
	)

	hm := health.NewManager("test")
	h, err := NewRouter(Deps{
		Relay:     rl,
		Proxy:     catalog.NewProxyHandler(cc, APIPrefix, catalog.PlatformDramaBox),
		Catalog:   catalog.NewHandler(cat, zerolog.Nop()).Routes(),
		Health:    hm,
		StaticDir: staticDir,
		Stack:     stack,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return &testEnv{origin: origin, health: hm, handler: h}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(OpenAPISpec())
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

func validateOpenAPIResponse(t *testing.T, doc *openapi3.T, req *http.Request, rr *httptest.ResponseRecorder) {
	t.Helper()
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
	}
	require.NoError(t, openapi3filter.ValidateRequest(context.Background(), reqInput), "openapi request validation")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 rr.Code,
		Header:                 rr.Header(),
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

func TestOpenAPIContract_JSONRoutes(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	env := newTestEnv(t, "")

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"platforms", "/catalog", http.StatusOK},
		{"listing", "/catalog/dramabox/dramas?page=1&lang=en", http.StatusOK},
		{"playback", "/catalog/dramabox/dramas/41000/episodes/1", http.StatusOK},
		{"search", "/catalog/dramabox/search?q=love", http.StatusOK},
		{"empty search", "/catalog/dramabox/search?q=%20", http.StatusBadRequest},
		{"rank", "/catalog/dramabox/rank?lang=en", http.StatusOK},
		{"detail", "/catalog/dramabox/dramas/41000", http.StatusOK},
		{"locked episode", "/catalog/shortmax/dramas/9/episodes/30", http.StatusForbidden},
		{"unknown platform", "/catalog/netflix/dramas", http.StatusNotFound},
		{"proxy", "/api/home?platform=shortmax", http.StatusOK},
		{"proxy forbidden", "/api/admin", http.StatusForbidden},
		{"health", "/healthz?verbose=true", http.StatusOK},
		{"ready", "/readyz", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://dramarelay.local"+tt.target, nil)
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			// Re-parse: the handler chain may have rewritten URL fields.
			check := httptest.NewRequest(http.MethodGet, "http://dramarelay.local"+tt.target, nil)
			validateOpenAPIResponse(t, doc, check, rr)
		})
	}
}

func TestOpenAPIContract_EveryOperationIsMounted(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	env := newTestEnv(t, "")

	samples := map[string]string{}
	for _, s := range []struct{ path, target string }{
		{"/video", "/video?url=cdn.example/show/index.m3u8"},
		{"/api/{path}", "/api/home?platform=shortmax"},
		{"/catalog", "/catalog"},
		{"/catalog/{platform}/dramas", "/catalog/dramabox/dramas"},
		{"/catalog/{platform}/dramas/{id}/episodes/{episode}", "/catalog/dramabox/dramas/41000/episodes/1"},
		{"/catalog/{platform}/search", "/catalog/dramabox/search?q=love"},
		{"/catalog/{platform}/rank", "/catalog/dramabox/rank"},
		{"/catalog/{platform}/dramas/{id}", "/catalog/dramabox/dramas/41000"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
	} {
		samples[s.path] = s.target
	}
	for path := range doc.Paths.Map() {
		target, ok := samples[path]
		require.True(t, ok, "no sample request for %s", path)

		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code == http.StatusNotFound || rr.Code == http.StatusMethodNotAllowed {
			t.Fatalf("route not mounted: GET %s -> %d", target, rr.Code)
		}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureManifest = "#EXTM3U\n" +
	"#EXT-X-VERSION:3\n" +
	"segment0.ts\n" +
	"https://other.cdn/segment1.ts?sig=abc\n" +
	"sub.m3u8\n"

func TestRewriteManifest_Fixture(t *testing.T) {
	got, n := RewriteManifest(fixtureManifest, "example.cdn/playlist.m3u8", "/video")

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"/video?url=example.cdn%2Fsegment0.ts\n" +
		"/video?url=other.cdn%2Fsegment1.ts%3Fsig%3Dabc\n" +
		"/video?url=example.cdn%2Fsub.m3u8\n"
	assert.Equal(t, want, got)
	assert.Equal(t, 3, n)
}

func TestRewriteManifest_RoundTripDecodesToTarget(t *testing.T) {
	manifest := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:6",
		"#EXTINF:6.0,",
		"seg/000.ts?token=a%2Fb&x=1",
		"#EXTINF:6.0,",
		"https://edge.cdn/live/001.ts",
		"#EXT-X-STREAM-INF:BANDWIDTH=800000",
		"../720p/index.m3u8?sig=z",
		"//mirror.cdn/p/002.ts",
		"/abs/003.ts",
		"http://plain.cdn/004.ts",
	}, "\n")

	got, n := RewriteManifest(manifest, "origin.cdn/show/ep1/master.m3u8?auth=x/y", "/video")
	require.Equal(t, 6, n)

	wantTargets := []string{
		"origin.cdn/show/ep1/seg/000.ts?token=a%2Fb&x=1",
		"edge.cdn/live/001.ts",
		"origin.cdn/show/ep1/../720p/index.m3u8?sig=z",
		"mirror.cdn/p/002.ts",
		"origin.cdn/abs/003.ts",
		"http://plain.cdn/004.ts",
	}

	var decoded []string
	for _, line := range strings.Split(got, "\n") {
		if !strings.HasPrefix(line, "/video?url=") {
			continue
		}
		u, err := url.Parse(line)
		require.NoError(t, err)
		decoded = append(decoded, u.Query().Get("url"))
	}
	assert.Equal(t, wantTargets, decoded)
}

func TestRewriteManifest_LeavesTagsAndBlankLinesIntact(t *testing.T) {
	manifest := "#EXTM3U\n\n#EXT-X-KEY:METHOD=AES-128,URI=\"key.ts\"\n   \n#comment seg.ts\n"
	got, n := RewriteManifest(manifest, "cdn/a/list.m3u8", "/video")
	assert.Equal(t, manifest, got)
	assert.Zero(t, n)
}

func TestRewriteManifest_PreservesCRLF(t *testing.T) {
	manifest := "#EXTM3U\r\nseg1.ts\r\n#EXT-X-ENDLIST\r\n"
	got, n := RewriteManifest(manifest, "cdn/a/list.m3u8", "/video")
	assert.Equal(t, "#EXTM3U\r\n/video?url=cdn%2Fa%2Fseg1.ts\r\n#EXT-X-ENDLIST\r\n", got)
	assert.Equal(t, 1, n)
}

func TestRewriteManifest_Idempotent(t *testing.T) {
	once, n1 := RewriteManifest(fixtureManifest, "example.cdn/playlist.m3u8", "/video")
	twice, n2 := RewriteManifest(once, "example.cdn/playlist.m3u8", "/video")
	assert.Equal(t, once, twice)
	assert.Equal(t, 3, n1)
	assert.Zero(t, n2)
}

func TestRewriteManifest_RewritesLineOnce(t *testing.T) {
	// Matches both extensions; must produce a single relay URL.
	got, n := RewriteManifest("a.ts.m3u8\n", "cdn/x/list.m3u8", "/video")
	assert.Equal(t, "/video?url=cdn%2Fx%2Fa.ts.m3u8\n", got)
	assert.Equal(t, 1, n)
}

func TestRewriteManifest_RequiresNameBeforeExtension(t *testing.T) {
	got, n := RewriteManifest(".ts\nvideo.mp4\n", "cdn/x/list.m3u8", "/video")
	assert.Equal(t, ".ts\nvideo.mp4\n", got)
	assert.Zero(t, n)
}

func TestRewriteManifest_CustomRelayPath(t *testing.T) {
	got, _ := RewriteManifest("seg.ts", "cdn/list.m3u8", "/api/video")
	assert.Equal(t, "/api/video?url=cdn%2Fseg.ts", got)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"example.cdn/playlist.m3u8", "example.cdn/"},
		{"example.cdn/a/b/playlist.m3u8?x=1/2", "example.cdn/a/b/"},
		{"example.cdn", "example.cdn/"},
		{"http://plain.cdn/v/list.m3u8", "http://plain.cdn/v/"},
		{"http://plain.cdn", "http://plain.cdn/"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseURL(tt.target))
		})
	}
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "example.cdn", Origin("example.cdn/a/b.m3u8"))
	assert.Equal(t, "example.cdn:8443", Origin("example.cdn:8443?x=1"))
	assert.Equal(t, "http://plain.cdn", Origin("http://plain.cdn/a.m3u8"))
}

func TestIsManifestTarget(t *testing.T) {
	assert.True(t, IsManifestTarget("cdn/a/index.m3u8"))
	assert.True(t, IsManifestTarget("cdn/a/index.m3u8?sig=abc"))
	assert.False(t, IsManifestTarget("cdn/a/seg.ts"))
	assert.False(t, IsManifestTarget("cdn/a/episode.mp4"))
}

func TestEncodeTarget(t *testing.T) {
	assert.Equal(t, "cdn%2Fa.ts", EncodeTarget("https://cdn/a.ts"))
	assert.Equal(t, "http%3A%2F%2Fcdn%2Fa.ts", EncodeTarget("http://cdn/a.ts"))
}

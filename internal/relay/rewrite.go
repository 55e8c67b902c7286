// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"net/url"
	"strings"
)

const (
	schemeHTTPS = "https://"
	schemeHTTP  = "http://"
)

// Reference extensions, checked in order. A line is rewritten at most once.
var referenceExtensions = []string{".ts", ".m3u8"}

// IsManifestTarget reports whether target names an HLS playlist. The test is a
// substring match so signed query strings after the extension still count.
func IsManifestTarget(target string) bool {
	return strings.Contains(target, ".m3u8")
}

// BaseURL returns target up to and including the last slash of its path.
// A slash inside the query string does not count.
func BaseURL(target string) string {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	slash := strings.LastIndexByte(path, '/')
	if slash < 0 || slash < schemeEnd(path) {
		return path + "/"
	}
	return path[:slash+1]
}

// Origin returns the scheme (if explicit) and host of target, without a
// trailing slash.
func Origin(target string) string {
	start := schemeEnd(target)
	rest := target[start:]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return target[:start] + rest
}

// EncodeTarget turns an upstream URL into the url parameter value of a relay
// request: the https scheme is stripped and the remainder query-escaped. An
// explicit http scheme is kept so the relay can reach plain-http origins.
func EncodeTarget(target string) string {
	return encodeTarget(target, schemeHTTPS)
}

// encodeTarget strips implicitScheme, the scheme the relay re-adds to
// scheme-less targets, and keeps any other scheme verbatim.
func encodeTarget(target, implicitScheme string) string {
	if hasPrefixFold(target, implicitScheme) {
		target = target[len(implicitScheme):]
	}
	return url.QueryEscape(target)
}

// RelayURL builds the relay-relative URL for target.
func RelayURL(relayPath, target string) string {
	return RelayURLFor(relayPath, schemeHTTPS, target)
}

// RelayURLFor is RelayURL for a relay configured with upstreamBase.
func RelayURLFor(relayPath, upstreamBase, target string) string {
	return relayPath + "?url=" + encodeTarget(target, strings.ToLower(upstreamBase))
}

// RewriteManifest rewrites every segment and sub-playlist reference of an HLS
// manifest so it points back through relayPath. target is the scheme-stripped
// URL the manifest was fetched from. It returns the new document and the
// number of lines rewritten. Tags, comments and blank lines are left intact,
// as are the original line endings.
func RewriteManifest(manifest, target, relayPath string) (string, int) {
	return rewriteManifest(manifest, target, relayPath, schemeHTTPS)
}

// rewriteManifest is RewriteManifest for a relay whose scheme-less targets
// are fetched over implicitScheme.
func rewriteManifest(manifest, target, relayPath, implicitScheme string) (string, int) {
	base := BaseURL(target)
	origin := Origin(target)
	scheme := target[:schemeEnd(target)]
	relayPrefix := relayPath + "?url="

	lines := strings.SplitAfter(manifest, "\n")
	var b strings.Builder
	b.Grow(len(manifest) + len(manifest)/2)

	rewritten := 0
	for _, raw := range lines {
		content, ending := splitLineEnding(raw)
		line := strings.TrimSpace(content)

		if line == "" || line[0] == '#' || strings.HasPrefix(line, relayPrefix) || !isReference(line) {
			b.WriteString(raw)
			continue
		}

		b.WriteString(relayPrefix)
		b.WriteString(encodeTarget(resolveReference(line, base, origin, scheme), implicitScheme))
		b.WriteString(ending)
		rewritten++
	}
	return b.String(), rewritten
}

// isReference reports whether line names a segment or sub-playlist. At least
// one character must precede the extension.
func isReference(line string) bool {
	for _, ext := range referenceExtensions {
		if len(line) > 1 && strings.Contains(line[1:], ext) {
			return true
		}
	}
	return false
}

// resolveReference makes line absolute against the manifest. A
// scheme-relative line inherits the manifest's explicit scheme, if any.
func resolveReference(line, base, origin, scheme string) string {
	switch {
	case hasPrefixFold(line, schemeHTTPS):
		return schemeHTTPS + line[len(schemeHTTPS):]
	case hasPrefixFold(line, schemeHTTP):
		return schemeHTTP + line[len(schemeHTTP):]
	case strings.HasPrefix(line, "//"):
		return scheme + line[2:]
	case strings.HasPrefix(line, "/"):
		return origin + line
	default:
		return base + line
	}
}

func splitLineEnding(raw string) (string, string) {
	switch {
	case strings.HasSuffix(raw, "\r\n"):
		return raw[:len(raw)-2], "\r\n"
	case strings.HasSuffix(raw, "\n"):
		return raw[:len(raw)-1], "\n"
	default:
		return raw, ""
	}
}

// schemeEnd returns the index just past an explicit http(s) scheme, or 0.
func schemeEnd(target string) int {
	switch {
	case hasPrefixFold(target, schemeHTTPS):
		return len(schemeHTTPS)
	case hasPrefixFold(target, schemeHTTP):
		return len(schemeHTTP)
	default:
		return 0
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

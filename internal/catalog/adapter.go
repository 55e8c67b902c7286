// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog fronts the upstream short-drama catalog APIs: an
// allowlisted JSON pass-through and per-provider adapters that normalise the
// provider shapes into one Drama and Playback record.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultLang is used when a request names no language.
const DefaultLang = "th"

// StreamType tells the player how to open a playback URL.
type StreamType string

const (
	StreamHLS StreamType = "hls"
	StreamMP4 StreamType = "mp4"
)

// Drama is the canonical catalog entry.
type Drama struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Cover     string   `json:"cover"`
	Episodes  int      `json:"episodes"`
	Summary   string   `json:"summary,omitempty"`
	Platform  string   `json:"platform"`
	Tags      []string `json:"tags,omitempty"`
	PlayCount string   `json:"playCount,omitempty"`
	HotScore  string   `json:"hotScore,omitempty"`
}

// Quality is one playable rendition.
type Quality struct {
	Height int    `json:"quality"`
	URL    string `json:"url"`
}

// Playback is the canonical per-episode playback record.
type Playback struct {
	DramaID   string     `json:"dramaId"`
	Episode   int        `json:"episode"`
	URL       string     `json:"url"`
	Type      StreamType `json:"type"`
	Cover     string     `json:"cover,omitempty"`
	Qualities []Quality  `json:"qualities,omitempty"`
}

// Page is one page of a listing.
type Page struct {
	Platform string  `json:"platform"`
	Page     int     `json:"page"`
	Dramas   []Drama `json:"dramas"`
	HasMore  bool    `json:"hasMore"`
}

// RankSection is one titled ranking list.
type RankSection struct {
	Title  string  `json:"title"`
	Dramas []Drama `json:"dramas"`
}

// CatalogAdapter turns one provider's API into canonical records.
type CatalogAdapter interface {
	Platform() string
	ListDramas(ctx context.Context, page int, lang string) (*Page, error)
	Search(ctx context.Context, query string, page int, lang string) (*Page, error)
	// Detail may return a partial Drama; Episodes is always set.
	Detail(ctx context.Context, dramaID string, lang string) (*Drama, error)
	Rank(ctx context.Context, lang string) ([]RankSection, error)
	Playback(ctx context.Context, dramaID string, episode int, lang string) (*Playback, error)
}

// Catalog looks up adapters by platform name.
type Catalog struct {
	adapters map[string]CatalogAdapter
}

// NewCatalog registers adapters under their platform names.
func NewCatalog(adapters ...CatalogAdapter) *Catalog {
	c := &Catalog{adapters: make(map[string]CatalogAdapter, len(adapters))}
	for _, a := range adapters {
		c.adapters[a.Platform()] = a
	}
	return c
}

// Adapter returns the adapter for platform.
func (c *Catalog) Adapter(platform string) (CatalogAdapter, error) {
	if a, ok := c.adapters[platform]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%q: %w", platform, ErrUnknownPlatform)
}

// Platforms lists the registered platform names in sorted order.
func (c *Catalog) Platforms() []string {
	names := make([]string, 0, len(c.adapters))
	for name := range c.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeTitle trims and NFC-normalises a display string. Providers mix
// precomposed and decomposed Thai and Vietnamese text.
func normalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func langOrDefault(lang string) string {
	if lang == "" {
		return DefaultLang
	}
	return lang
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("flexInt %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

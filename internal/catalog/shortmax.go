// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ManuGH/dramarelay/internal/relay"
)

const (
	// ShortMax serves only the leading episodes of every drama.
	shortMaxLockedFrom = 30
	shortMaxPageSize   = 20
)

// ShortMaxAdapter normalises the ShortMax API. Episodes are HLS streams that
// the browser can only reach through the relay.
type ShortMaxAdapter struct {
	client       *Client
	relayPath    string
	upstreamBase string
}

// ShortMaxOption configures a ShortMaxAdapter.
type ShortMaxOption func(*ShortMaxAdapter)

// WithUpstreamBase matches playback links to a relay whose UpstreamBaseURL
// is not the default https scheme.
func WithUpstreamBase(base string) ShortMaxOption {
	return func(a *ShortMaxAdapter) {
		if base != "" {
			a.upstreamBase = base
		}
	}
}

// NewShortMaxAdapter creates the ShortMax adapter. relayPath is the path of
// the HLS relay that playback URLs are routed through.
func NewShortMaxAdapter(client *Client, relayPath string, opts ...ShortMaxOption) *ShortMaxAdapter {
	if relayPath == "" {
		relayPath = relay.DefaultRelayPath
	}
	a := &ShortMaxAdapter{client: client, relayPath: relayPath, upstreamBase: relay.DefaultUpstreamBaseURL}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ShortMaxAdapter) Platform() string { return PlatformShortMax }

type shortMaxItem struct {
	Code     flexString `json:"code"`
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Cover    string     `json:"cover"`
	Episodes flexInt    `json:"episodes"`
	Summary  string     `json:"summary"`
	HotScore flexString `json:"hotScore"`
	Tags     []string   `json:"tags"`
}

type shortMaxListResponse struct {
	Data []shortMaxItem `json:"data"`
}

type shortMaxDetailResponse struct {
	Data *shortMaxItem `json:"data"`
}

type shortMaxRankResponse struct {
	Data []struct {
		Title string         `json:"title"`
		Items []shortMaxItem `json:"items"`
	} `json:"data"`
}

type shortMaxPlayResponse struct {
	Data struct {
		Cover string `json:"cover"`
		Video struct {
			Video720 string `json:"video_720"`
			Video480 string `json:"video_480"`
		} `json:"video"`
	} `json:"data"`
}

func (it shortMaxItem) normalize() Drama {
	id := it.Code
	if id == "" {
		id = it.ID
	}
	return Drama{
		ID:       string(id),
		Title:    normalizeTitle(it.Name),
		Cover:    it.Cover,
		Episodes: int(it.Episodes),
		Summary:  it.Summary,
		Platform: PlatformShortMax,
		Tags:     it.Tags,
		HotScore: string(it.HotScore),
	}
}

// EpisodeLocked reports whether ShortMax refuses to serve episode.
func EpisodeLocked(episode int) bool {
	return episode >= shortMaxLockedFrom
}

func normalizeShortMax(items []shortMaxItem) []Drama {
	out := make([]Drama, 0, len(items))
	for _, it := range items {
		out = append(out, it.normalize())
	}
	return out
}

// list fetches one of the {data:[...]} endpoints as a page.
func (a *ShortMaxAdapter) list(ctx context.Context, path string, query url.Values, page int, what string) (*Page, error) {
	res, err := a.client.Get(ctx, PlatformShortMax, path, query)
	if err != nil {
		return nil, err
	}

	var body shortMaxListResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("shortmax: decode %s: %w", what, err)
	}
	return &Page{
		Platform: PlatformShortMax,
		Page:     page,
		Dramas:   normalizeShortMax(body.Data),
		HasMore:  len(body.Data) >= shortMaxPageSize,
	}, nil
}

// ListDramas returns the "for you" feed page.
func (a *ShortMaxAdapter) ListDramas(ctx context.Context, page int, lang string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	return a.list(ctx, "/foryou", url.Values{
		"page": {strconv.Itoa(page)},
		"lang": {langOrDefault(lang)},
	}, page, "listing")
}

// Search returns one page of titles matching query.
func (a *ShortMaxAdapter) Search(ctx context.Context, query string, page int, lang string) (*Page, error) {
	query = normalizeTitle(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}
	return a.list(ctx, "/search", url.Values{
		"q":    {query},
		"page": {strconv.Itoa(page)},
		"lang": {langOrDefault(lang)},
	}, page, "search")
}

func (a *ShortMaxAdapter) Detail(ctx context.Context, dramaID string, lang string) (*Drama, error) {
	res, err := a.client.Get(ctx, PlatformShortMax, "/detail/"+url.PathEscape(dramaID),
		url.Values{"lang": {langOrDefault(lang)}})
	if err != nil {
		return nil, err
	}

	var body shortMaxDetailResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("shortmax: decode detail: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("shortmax %s: %w", dramaID, ErrDramaNotFound)
	}
	d := body.Data.normalize()
	if d.ID == "" {
		d.ID = dramaID
	}
	return &d, nil
}

// Rank returns the ranked feed, one section per upstream heading.
func (a *ShortMaxAdapter) Rank(ctx context.Context, lang string) ([]RankSection, error) {
	res, err := a.client.Get(ctx, PlatformShortMax, "/feed/ranked", url.Values{"lang": {langOrDefault(lang)}})
	if err != nil {
		return nil, err
	}

	var body shortMaxRankResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("shortmax: decode rank: %w", err)
	}
	out := make([]RankSection, 0, len(body.Data))
	for _, sec := range body.Data {
		out = append(out, RankSection{Title: normalizeTitle(sec.Title), Dramas: normalizeShortMax(sec.Items)})
	}
	return out, nil
}

// Playback resolves a 1-based episode to a relay URL for its stream.
func (a *ShortMaxAdapter) Playback(ctx context.Context, dramaID string, episode int, lang string) (*Playback, error) {
	if episode < 1 {
		return nil, ErrInvalidEpisode
	}
	if EpisodeLocked(episode) {
		return nil, fmt.Errorf("shortmax episode %d: %w", episode, ErrEpisodeLocked)
	}

	res, err := a.client.Get(ctx, PlatformShortMax, "/play/"+url.PathEscape(dramaID), url.Values{
		"ep":   {strconv.Itoa(episode)},
		"lang": {langOrDefault(lang)},
	})
	if err != nil {
		return nil, err
	}

	var body shortMaxPlayResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("shortmax: decode playback: %w", err)
	}

	src := body.Data.Video.Video720
	if src == "" {
		src = body.Data.Video.Video480
	}
	if src == "" {
		return nil, fmt.Errorf("shortmax %s episode %d: %w", dramaID, episode, ErrPlaybackUnavailable)
	}

	streamType := StreamMP4
	if relay.IsManifestTarget(src) {
		streamType = StreamHLS
	}
	return &Playback{
		DramaID: dramaID,
		Episode: episode,
		URL:     relay.RelayURLFor(a.relayPath, a.upstreamBase, src),
		Type:    streamType,
		Cover:   body.Data.Cover,
	}, nil
}

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
)

const preferredQuality = 720

// DramaBoxAdapter normalises the DramaBox API. Episodes are MP4 files played
// directly by the browser.
type DramaBoxAdapter struct {
	client *Client
}

// NewDramaBoxAdapter creates the DramaBox adapter.
func NewDramaBoxAdapter(client *Client) *DramaBoxAdapter {
	return &DramaBoxAdapter{client: client}
}

func (a *DramaBoxAdapter) Platform() string { return PlatformDramaBox }

type dramaBoxBook struct {
	BookID       flexString   `json:"bookId"`
	BookName     string       `json:"bookName"`
	Cover        string       `json:"cover"`
	ChapterCount flexInt      `json:"chapterCount"`
	Introduction string       `json:"introduction"`
	Tags         []string     `json:"tags"`
	PlayCount    flexString   `json:"playCount"`
	Rank         *dramaBoxHot `json:"rank"`
}

type dramaBoxHot struct {
	HotCode flexString `json:"hotCode"`
}

type dramaBoxListResponse struct {
	Data struct {
		List   []dramaBoxBook `json:"list"`
		IsMore *bool          `json:"isMore"`
	} `json:"data"`
}

type dramaBoxWatchResponse struct {
	Data struct {
		VideoURL  string `json:"videoUrl"`
		Cover     string `json:"cover"`
		Qualities []struct {
			Quality   flexInt `json:"quality"`
			VideoPath string  `json:"videoPath"`
		} `json:"qualities"`
	} `json:"data"`
}

func (b dramaBoxBook) normalize() Drama {
	d := Drama{
		ID:        string(b.BookID),
		Title:     normalizeTitle(b.BookName),
		Cover:     b.Cover,
		Episodes:  int(b.ChapterCount),
		Summary:   b.Introduction,
		Platform:  PlatformDramaBox,
		Tags:      b.Tags,
		PlayCount: string(b.PlayCount),
	}
	if b.Rank != nil {
		d.HotScore = string(b.Rank.HotCode)
	}
	return d
}

type dramaBoxChaptersResponse struct {
	Data *struct {
		ChapterList []json.RawMessage `json:"chapterList"`
	} `json:"data"`
}

// list fetches one of the {data:{list,isMore}} endpoints.
func (a *DramaBoxAdapter) list(ctx context.Context, path string, query url.Values, what string) (*dramaBoxListResponse, error) {
	res, err := a.client.Get(ctx, PlatformDramaBox, path, query)
	if err != nil {
		return nil, err
	}
	var body dramaBoxListResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("dramabox: decode %s: %w", what, err)
	}
	return &body, nil
}

func (r *dramaBoxListResponse) dramas() []Drama {
	out := make([]Drama, 0, len(r.Data.List))
	for _, b := range r.Data.List {
		out = append(out, b.normalize())
	}
	return out
}

func (r *dramaBoxListResponse) page(page int) *Page {
	out := &Page{Platform: PlatformDramaBox, Page: page, Dramas: r.dramas()}
	if r.Data.IsMore != nil {
		out.HasMore = *r.Data.IsMore
	} else {
		out.HasMore = len(r.Data.List) >= 10
	}
	return out
}

// ListDramas returns the "for you" feed page.
func (a *DramaBoxAdapter) ListDramas(ctx context.Context, page int, lang string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	body, err := a.list(ctx, "/foryou/"+strconv.Itoa(page), url.Values{"lang": {langOrDefault(lang)}}, "listing")
	if err != nil {
		return nil, err
	}
	return body.page(page), nil
}

// Search returns one page of titles matching query.
func (a *DramaBoxAdapter) Search(ctx context.Context, query string, page int, lang string) (*Page, error) {
	query = normalizeTitle(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}
	body, err := a.list(ctx, "/search/"+strconv.Itoa(page), url.Values{
		"q":    {query},
		"lang": {langOrDefault(lang)},
	}, "search")
	if err != nil {
		return nil, err
	}
	return body.page(page), nil
}

// Detail counts the chapters of a book. DramaBox has no detail endpoint, so
// only ID and Episodes are filled in; listings already carry the rest.
func (a *DramaBoxAdapter) Detail(ctx context.Context, dramaID string, lang string) (*Drama, error) {
	res, err := a.client.Get(ctx, PlatformDramaBox, "/chapters/"+url.PathEscape(dramaID),
		url.Values{"lang": {langOrDefault(lang)}})
	if err != nil {
		return nil, err
	}

	var body dramaBoxChaptersResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("dramabox: decode chapters: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("dramabox %s: %w", dramaID, ErrDramaNotFound)
	}
	return &Drama{ID: dramaID, Episodes: len(body.Data.ChapterList), Platform: PlatformDramaBox}, nil
}

// Rank returns the first page of the popularity ranking as a single section.
func (a *DramaBoxAdapter) Rank(ctx context.Context, lang string) ([]RankSection, error) {
	body, err := a.list(ctx, "/rank/1", url.Values{"lang": {langOrDefault(lang)}}, "rank")
	if err != nil {
		return nil, err
	}
	return []RankSection{{Title: "Popular", Dramas: body.dramas()}}, nil
}

// Playback resolves a 1-based episode to its MP4 URL, preferring 720p.
func (a *DramaBoxAdapter) Playback(ctx context.Context, dramaID string, episode int, lang string) (*Playback, error) {
	if episode < 1 {
		return nil, ErrInvalidEpisode
	}
	path := "/watch/" + url.PathEscape(dramaID) + "/" + strconv.Itoa(episode-1)
	res, err := a.client.Get(ctx, PlatformDramaBox, path, url.Values{
		"lang":   {langOrDefault(lang)},
		"source": {"search_result"},
	})
	if err != nil {
		return nil, err
	}

	var body dramaBoxWatchResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("dramabox: decode playback: %w", err)
	}

	pb := &Playback{
		DramaID: dramaID,
		Episode: episode,
		Type:    StreamMP4,
		Cover:   body.Data.Cover,
	}
	for _, q := range body.Data.Qualities {
		if q.VideoPath == "" {
			continue
		}
		pb.Qualities = append(pb.Qualities, Quality{Height: int(q.Quality), URL: q.VideoPath})
	}

	pb.URL = body.Data.VideoURL
	if len(pb.Qualities) > 0 {
		pb.URL = pb.Qualities[0].URL
		for _, q := range pb.Qualities {
			if q.Height == preferredQuality {
				pb.URL = q.URL
				break
			}
		}
	}
	if pb.URL == "" {
		return nil, fmt.Errorf("dramabox %s episode %d: %w", dramaID, episode, ErrPlaybackUnavailable)
	}
	return pb, nil
}

// Package discogs implements the Discogs half of the external-API
// orchestrator's sources (spec.md §4.8, §6). Grounded on
// kirbs-btw-spotify-playlist-dataset's resty usage pattern (token auth,
// SetQueryParams, JSON decode of the response body) adapted to Discogs's
// release-search endpoint and wired into its own rate limiter.
package discogs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/ratelimit"
)

const baseURL = "https://api.discogs.com"

// Client is Discogs's api.Source.
type Client struct {
	http    *resty.Client
	token   string
	limiter *ratelimit.Limiter
}

// NewClient creates a Discogs client authenticated with token (a
// personal access token, per spec.md §6). limiter must already be
// Initialize'd. Transport errors and 5xx responses are retried up to
// three times with exponential backoff (2s initial wait, 30s cap), the
// same shape as the MusicBrainz client.
func NewClient(token string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetHeader("User-Agent", "waves-sync/1.0").
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(30 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			}),
		token:   token,
		limiter: limiter,
	}
}

// Name identifies this source for scoring/config/cache lookups.
func (c *Client) Name() string { return "discogs" }

// Search implements api.Source.
func (c *Client) Search(ctx context.Context, artist, album string, titleOnly bool) ([]api.Candidate, error) {
	if _, err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	params := map[string]string{
		"type": "release",
	}
	if titleOnly {
		params["release_title"] = album
	} else {
		params["artist"] = artist
		params["release_title"] = album
	}
	if c.token != "" {
		params["token"] = c.token
	}

	var result searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/database/search")
	if err != nil {
		return nil, fmt.Errorf("discogs search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("discogs search status %d", resp.StatusCode())
	}

	out := make([]api.Candidate, 0, len(result.Results))
	for _, r := range result.Results {
		out = append(out, convertResult(r, artist, album))
	}
	return out, nil
}

// convertResult maps a raw Discogs search hit onto an api.Candidate.
func convertResult(r searchResult, queryArtist, queryAlbum string) api.Candidate {
	year := 0
	if y, err := strconv.Atoi(strings.TrimSpace(r.Year)); err == nil {
		year = y
	}

	title := r.Title
	artistName, albumTitle := splitTitle(title)

	releaseType := "album"
	switch strings.ToLower(r.Format0()) {
	case "ep":
		releaseType = "ep"
	case "single":
		releaseType = "single"
	}

	return api.Candidate{
		Source:      "discogs",
		Year:        year,
		Country:     r.Country,
		ReleaseType: releaseType,
		Status:      "official", // Discogs marketplace listings carry no promo/bootleg flag
		ArtistExact: strings.EqualFold(artistName, queryArtist),
		AlbumExact:  strings.EqualFold(albumTitle, queryAlbum),
		RawID:       strconv.Itoa(r.MasterID),
	}
}

// splitTitle breaks Discogs's "Artist - Album" search-result title into
// its two halves. Titles without the separator are treated as album-only.
func splitTitle(title string) (artist, album string) {
	if idx := strings.Index(title, " - "); idx >= 0 {
		return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
	}
	return "", strings.TrimSpace(title)
}

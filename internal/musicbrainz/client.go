package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/ratelimit"
)

const (
	baseURL   = "https://musicbrainz.org/ws/2"
	userAgent = "waves-sync/1.0 (+https://github.com/waves-sync/waves-sync)"

	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second
)

// Client is MusicBrainz's api.Source. Rate limiting is delegated to an
// internal/ratelimit.Limiter (MusicBrainz's documented policy is one
// request per second, max_concurrent=1) instead of the teacher's
// internal mutex-based throttle, so the same limiter type serves every
// source uniformly.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a MusicBrainz client. limiter must already be
// Initialize'd.
func NewClient(limiter *ratelimit.Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

// Name identifies this source for scoring/config/cache lookups.
func (c *Client) Name() string { return "musicbrainz" }

// Search implements api.Source.
func (c *Client) Search(ctx context.Context, artist, album string, titleOnly bool) ([]api.Candidate, error) {
	var query string
	if titleOnly {
		query = fmt.Sprintf(`release:"%s"`, album)
	} else {
		query = fmt.Sprintf(`artist:"%s" AND release:"%s"`, artist, album)
	}

	releases, err := c.searchReleases(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]api.Candidate, 0, len(releases))
	for _, r := range releases {
		out = append(out, convertRelease(r, artist, album))
	}
	return out, nil
}

func (c *Client) searchReleases(ctx context.Context, query string) ([]releaseResult, error) {
	if _, err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	params := url.Values{}
	params.Set("query", "("+query+") AND primarytype:album")
	params.Set("fmt", "json")
	params.Set("limit", "25")

	reqURL := fmt.Sprintf("%s/release?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Releases, nil
}

// doRequestWithRetry executes req with exponential backoff retry on
// network errors and 5xx responses.
func (c *Client) doRequestWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, maxDelay)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 500 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

// convertRelease maps a raw MusicBrainz release onto an api.Candidate.
func convertRelease(r releaseResult, queryArtist, queryAlbum string) api.Candidate {
	year := 0
	if len(r.Date) >= 4 {
		if y, err := strconv.Atoi(r.Date[:4]); err == nil {
			year = y
		}
	}

	releaseType := "album"
	isReissue := false
	if r.ReleaseGroup != nil {
		if r.ReleaseGroup.PrimaryType != "" {
			releaseType = strings.ToLower(r.ReleaseGroup.PrimaryType)
		}
		for _, st := range r.ReleaseGroup.SecondaryTypes {
			if strings.EqualFold(st, "compilation") {
				releaseType = "compilation"
			}
			if strings.EqualFold(st, "live") {
				releaseType = "live"
			}
		}
	}

	artistName := ""
	if len(r.ArtistCredit) > 0 {
		artistName = r.ArtistCredit[0].Name
	}

	return api.Candidate{
		Source:      "musicbrainz",
		Year:        year,
		Country:     r.Country,
		ReleaseType: releaseType,
		Status:      strings.ToLower(r.Status),
		IsReissue:   isReissue,
		ArtistExact: strings.EqualFold(artistName, queryArtist),
		AlbumExact:  strings.EqualFold(r.Title, queryAlbum),
		RawID:       r.ID,
	}
}

// Package lastfm provides a client for the Last.fm chart and tag APIs.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	// MaxTracks bounds the number of tracks fetched for one list.
	MaxTracks = 1000

	pageSize = 100
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache for tag top tracks, keyed by tag and limit
	cache   map[string][]TopTrack
	cacheMu sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// TopTrack represents a charting track.
type TopTrack struct {
	Name     string
	Artist   string
	MBID     string
	URL      string
	Duration time.Duration
}

// topTracksResponse is the response of tag.getTopTracks and chart.getTopTracks.
type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name     string `json:"name"`
			MBID     string `json:"mbid"`
			URL      string `json:"url"`
			Duration string `json:"duration"`
			Artist   struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string][]TopTrack),
	}, nil
}

// GetTagTopTracks retrieves up to limit top tracks for a tag. Results are
// cached for the lifetime of the client.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTagTopTracks(ctx context.Context, tagName string, limit int) ([]TopTrack, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit)

	cacheKey := fmt.Sprintf("%s:%d", tagName, limit)
	c.cacheMu.RLock()
	if tracks, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached top tracks for tag: %s", tagName)
		return tracks, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "tag.getTopTracks")
	params.Set("tag", tagName)

	tracks, err := c.fetchPages(ctx, params, limit)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = tracks
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached top tracks for tag: %s (count: %d)", tagName, len(tracks))

	return tracks, nil
}

// GetChartTopTracks retrieves up to limit global top tracks.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	return c.fetchPages(ctx, params, clampLimit(limit))
}

// fetchPages pages through a top tracks list until limit tracks are
// collected or the list runs out.
func (c *Client) fetchPages(ctx context.Context, params url.Values, limit int) ([]TopTrack, error) {
	tracks := make([]TopTrack, 0, limit)
	for page := 1; len(tracks) < limit; page++ {
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(pageSize))

		var response topTracksResponse
		if err := c.get(ctx, params, &response); err != nil {
			return nil, errors.Wrapf(err, "failed to fetch page %d", page)
		}

		for _, t := range response.Tracks.Track {
			if len(tracks) == limit {
				break
			}
			secs, _ := strconv.Atoi(t.Duration)
			tracks = append(tracks, TopTrack{
				Name:     t.Name,
				Artist:   t.Artist.Name,
				MBID:     t.MBID,
				URL:      t.URL,
				Duration: time.Duration(secs) * time.Second,
			})
		}
		if len(response.Tracks.Track) < pageSize {
			break
		}
	}
	return tracks, nil
}

// get performs one API call and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return pageSize
	}
	return min(limit, MaxTracks)
}

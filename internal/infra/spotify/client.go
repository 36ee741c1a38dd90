// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// ErrNotATrack is returned when a playlist position holds a podcast episode
// or a removed item.
var ErrNotATrack = errors.New("playlist item is not a track")

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Scopes are the OAuth scopes shufflebox needs. Playlists are only read.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// PlaylistName returns the name of a playlist.
func (c *Client) PlaylistName(ctx context.Context, playlistURL string) (string, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return "", errors.New("invalid playlist URL")
	}

	var name string
	err := c.retry(func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields("name"))
		if err != nil {
			return err
		}
		name = p.Name
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to get playlist")
	}
	return name, nil
}

// PlaylistLength returns the number of items in a playlist without fetching
// them.
func (c *Client) PlaylistLength(ctx context.Context, playlistURL string) (int, error) {
	page, err := c.playlistPage(ctx, playlistURL, 0, 1)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get playlist info")
	}
	return int(page.Total), nil
}

// PlaylistTrackAt fetches the single playlist item at offset.
func (c *Client) PlaylistTrackAt(ctx context.Context, playlistURL string, offset int) (*track.Track, error) {
	page, err := c.playlistPage(ctx, playlistURL, offset, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist item %d", offset)
	}
	if len(page.Items) == 0 {
		return nil, errors.Newf("playlist has no item at offset %d", offset)
	}

	item := page.Items[0]
	if item.Track.Track == nil || item.Track.Track.ID == "" {
		return nil, errors.Wrapf(ErrNotATrack, "offset %d", offset)
	}
	return c.convertTrack(item.Track.Track), nil
}

func (c *Client) playlistPage(ctx context.Context, playlistURL string, offset, limit int) (*spotify.PlaylistItemPage, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var page *spotify.PlaylistItemPage
	err := c.retry(func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

// convertTrack converts a Spotify FullTrack to domain Track.
func (c *Client) convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return &track.Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      trackURL(string(t.ID)),
	}
}

// trackURL returns the Spotify URL for a track.
func trackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}

	// https://open.spotify.com/playlist/ID or https://open.spotify.com/intl-XX/playlist/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	// Assume it's already a playlist ID
	return input
}

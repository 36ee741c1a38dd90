package source

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// SpotifyClient defines the Spotify operations needed by the playlist source.
type SpotifyClient interface {
	PlaylistLength(ctx context.Context, playlistURL string) (int, error)
	PlaylistTrackAt(ctx context.Context, playlistURL string, offset int) (*track.Track, error)
}

// SpotifyPlaylistSourceConfig points a source at a Spotify playlist.
type SpotifyPlaylistSourceConfig struct {
	PlaylistURL string `mapstructure:"playlist_url" validate:"required"`
}

// SpotifyPlaylistSource resolves indices to Spotify playlist items one at a
// time, so a shuffled pass never loads the whole playlist.
type SpotifyPlaylistSource struct {
	name    string
	spotify SpotifyClient
	config  *SpotifyPlaylistSourceConfig
}

// NewSpotifyPlaylistSource creates a new SpotifyPlaylistSource.
func NewSpotifyPlaylistSource(name string, spotify SpotifyClient, settings map[string]any) (*SpotifyPlaylistSource, error) {
	if spotify == nil {
		return nil, errors.New("spotify source requires a spotify client")
	}

	var config SpotifyPlaylistSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify source validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifyPlaylistSource{
		name:    name,
		spotify: spotify,
		config:  &config,
	}, nil
}

func (s *SpotifyPlaylistSource) Name() string {
	return s.name
}

func (s *SpotifyPlaylistSource) Len(ctx context.Context) (int, error) {
	n, err := s.spotify.PlaylistLength(ctx, s.config.PlaylistURL)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get length of %s", s.config.PlaylistURL)
	}
	return n, nil
}

func (s *SpotifyPlaylistSource) Track(ctx context.Context, index int) (*track.Track, error) {
	if index < 0 {
		return nil, checkIndex(index, 0)
	}
	t, err := s.spotify.PlaylistTrackAt(ctx, s.config.PlaylistURL, index)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve track %d", index)
	}
	t.Source = s.name
	return t, nil
}

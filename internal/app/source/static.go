package source

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/shufflebox/internal/domain/playlist"
	"github.com/osa030/shufflebox/internal/domain/track"
)

// StaticSourceConfig lists tracks inline in the configuration.
type StaticSourceConfig struct {
	Tracks []StaticTrackConfig `mapstructure:"tracks" validate:"required,min=1,dive"`
}

// StaticTrackConfig is one configured track.
type StaticTrackConfig struct {
	ID          string   `mapstructure:"id" validate:"required"`
	Name        string   `mapstructure:"name" validate:"required"`
	Artists     []string `mapstructure:"artists"`
	URL         string   `mapstructure:"url"`
	DurationSec int      `mapstructure:"duration_sec" validate:"gte=0"`
}

// StaticSource serves a fully loaded playlist.
type StaticSource struct {
	name     string
	playlist *playlist.Playlist
}

// NewStaticSource creates a source over an in-memory playlist.
func NewStaticSource(name string, p *playlist.Playlist) *StaticSource {
	return &StaticSource{name: name, playlist: p}
}

// NewStaticSourceFromSettings decodes and validates static source settings.
func NewStaticSourceFromSettings(name string, settings map[string]any) (*StaticSource, error) {
	var config StaticSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	tracks := make([]track.Track, len(config.Tracks))
	for i, tc := range config.Tracks {
		tracks[i] = track.Track{
			ID:       tc.ID,
			Name:     tc.Name,
			Artists:  tc.Artists,
			URL:      tc.URL,
			Duration: time.Duration(tc.DurationSec) * time.Second,
			Source:   name,
		}
	}
	return NewStaticSource(name, &playlist.Playlist{ID: name, Name: name, Tracks: tracks}), nil
}

func (s *StaticSource) Name() string {
	return s.name
}

func (s *StaticSource) Len(context.Context) (int, error) {
	return s.playlist.Len(), nil
}

func (s *StaticSource) Track(_ context.Context, index int) (*track.Track, error) {
	t, ok := s.playlist.TrackAt(index)
	if !ok {
		return nil, checkIndex(index, s.playlist.Len())
	}
	return t, nil
}

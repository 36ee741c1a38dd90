package source

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/shufflebox/internal/domain/track"
	"github.com/osa030/shufflebox/internal/infra/lastfm"
)

// LastFMClient defines the Last.fm operations needed by the chart source.
type LastFMClient interface {
	GetTagTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

// LastFMSourceConfig selects a Last.fm top tracks list.
type LastFMSourceConfig struct {
	Tag   string `mapstructure:"tag"` // empty: global chart
	Limit int    `mapstructure:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// LastFMSource serves the top tracks of a Last.fm tag or the global chart.
// The list is fetched on first use and kept, so its length stays fixed for
// the lifetime of the process.
type LastFMSource struct {
	name   string
	client LastFMClient
	config *LastFMSourceConfig

	mu     sync.Mutex
	tracks []lastfm.TopTrack
	loaded bool
}

// NewLastFMSource creates a new LastFMSource.
func NewLastFMSource(name string, client LastFMClient, settings map[string]any) (*LastFMSource, error) {
	if client == nil {
		return nil, errors.New("lastfm source requires a last.fm client")
	}

	var config LastFMSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &LastFMSource{
		name:   name,
		client: client,
		config: &config,
	}, nil
}

func (s *LastFMSource) Name() string {
	return s.name
}

func (s *LastFMSource) Len(ctx context.Context) (int, error) {
	tracks, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(tracks), nil
}

func (s *LastFMSource) Track(ctx context.Context, index int) (*track.Track, error) {
	tracks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(tracks)); err != nil {
		return nil, err
	}

	t := tracks[index]
	id := t.MBID
	if id == "" {
		id = t.URL
	}
	return &track.Track{
		ID:       id,
		Name:     t.Name,
		Artists:  []string{t.Artist},
		Duration: t.Duration,
		URL:      t.URL,
		Source:   s.name,
	}, nil
}

// load fetches the list once. A failed fetch is retried on the next call.
func (s *LastFMSource) load(ctx context.Context) ([]lastfm.TopTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.tracks, nil
	}

	var tracks []lastfm.TopTrack
	var err error
	if s.config.Tag == "" {
		tracks, err = s.client.GetChartTopTracks(ctx, s.config.Limit)
	} else {
		tracks, err = s.client.GetTagTopTracks(ctx, s.config.Tag, s.config.Limit)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load top tracks (tag %q)", s.config.Tag)
	}

	s.tracks = tracks
	s.loaded = true
	return tracks, nil
}

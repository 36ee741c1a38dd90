package source

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/infra/config"
)

// Source types.
const (
	TypeStatic    = "static"
	TypeDirectory = "directory"
	TypeSpotify   = "spotify"
	TypeLastFM    = "lastfm"
)

// Clients holds the API clients remote sources are built on. A client may be
// nil when no source of its type is configured.
type Clients struct {
	Spotify SpotifyClient
	LastFM  LastFMClient
}

// NewRegistryFromConfig creates every configured source.
func NewRegistryFromConfig(cfg *config.Config, clients Clients) (*Registry, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	sources := make([]Source, 0, len(cfg.Sources))
	for i, scfg := range cfg.Sources {
		var src Source
		var err error
		zlog.Debug().Msgf("creating source: index=%d name=%s type=%s", i+1, scfg.Name, scfg.Type)
		switch scfg.Type {
		case TypeStatic:
			src, err = NewStaticSourceFromSettings(scfg.Name, scfg.Settings)

		case TypeDirectory:
			src, err = NewDirectorySourceFromSettings(scfg.Name, scfg.Settings)

		case TypeSpotify:
			if clients.Spotify == nil {
				err = errors.New("spotify client is not configured")
				break
			}
			src, err = NewSpotifyPlaylistSource(scfg.Name, clients.Spotify, scfg.Settings)

		case TypeLastFM:
			if clients.LastFM == nil {
				err = errors.New("last.fm client is not configured")
				break
			}
			src, err = NewLastFMSource(scfg.Name, clients.LastFM, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, name %s)", i, scfg.Name)
		}

		sources = append(sources, src)
		zlog.Info().Msgf("registered source: index=%d name=%s type=%s", i+1, scfg.Name, scfg.Type)
	}

	return NewRegistry(sources...), nil
}

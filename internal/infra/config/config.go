// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	API     APIConfig      `yaml:"api"`
	Store   StoreConfig    `yaml:"store"`
	Shuffle ShuffleConfig  `yaml:"shuffle"`
	Sources []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
	Spotify SpotifyConfig  `yaml:"spotify"`
	LastFM  LastFMConfig   `yaml:"lastfm"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// APIConfig represents API access configuration.
type APIConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// StoreConfig represents snapshot store configuration.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=memory sqlite"`
	Path   string `yaml:"path"` // empty: XDG data directory
}

// ShuffleConfig represents shuffle iterator defaults.
type ShuffleConfig struct {
	ChunkSize int `yaml:"chunk_size" default:"100" validate:"gte=1,lte=100"`
}

// SourceConfig represents a single named track source.
type SourceConfig struct {
	Name     string         `yaml:"name" validate:"required"`
	Type     string         `yaml:"type" validate:"required,oneof=static directory spotify lastfm"`
	Settings map[string]any `yaml:"settings" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
// Only needed when a spotify source is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// LastFMConfig represents Last.fm API configuration.
// Only needed when a lastfm source is configured.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SHUFFLEBOX_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateSources(); err != nil {
		return err
	}

	return nil
}

// validateSources checks source names are unique and API credentials exist
// for the remote sources that need them.
func (c *Config) validateSources() error {
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if names[s.Name] {
			return errors.Newf("duplicate source name %q (source index %d)", s.Name, i)
		}
		names[s.Name] = true
	}

	if c.HasSpotifySource() && !c.Spotify.HasCredentials() {
		return errors.New("spotify source configured but spotify client_id, client_secret or refresh_token is missing")
	}
	if c.HasLastFMSource() && c.LastFM.APIKey == "" {
		return errors.New("lastfm source configured but lastfm api_key is missing")
	}
	return nil
}

// HasSpotifySource reports whether any configured source uses Spotify.
func (c *Config) HasSpotifySource() bool {
	return c.hasSourceType("spotify")
}

// HasLastFMSource reports whether any configured source uses Last.fm.
func (c *Config) HasLastFMSource() bool {
	return c.hasSourceType("lastfm")
}

func (c *Config) hasSourceType(sourceType string) bool {
	for _, s := range c.Sources {
		if s.Type == sourceType {
			return true
		}
	}
	return false
}

// HasCredentials reports whether every Spotify credential is set.
func (s SpotifyConfig) HasCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

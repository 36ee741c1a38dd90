package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/dhowden/tag"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// audioExtensions are the file extensions picked up from a directory.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// DirectorySourceConfig points a source at a local music directory.
type DirectorySourceConfig struct {
	Path      string `mapstructure:"path" validate:"required"`
	Recursive bool   `mapstructure:"recursive" default:"true"`
}

// DirectorySource serves the audio files below a directory in path order.
// Tags are read lazily when a track is resolved.
type DirectorySource struct {
	name  string
	root  string
	files []string
}

// NewDirectorySourceFromSettings decodes settings and scans the directory.
func NewDirectorySourceFromSettings(name string, settings map[string]any) (*DirectorySource, error) {
	var config DirectorySourceConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return NewDirectorySource(name, config.Path, config.Recursive)
}

// NewDirectorySource scans root for audio files.
func NewDirectorySource(name, root string, recursive bool) (*DirectorySource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open music directory")
	}
	if !info.IsDir() {
		return nil, errors.Newf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan music directory")
	}
	sort.Strings(files)

	zlog.Info().Msgf("directory source scanned: name=%s path=%s tracks=%d", name, root, len(files))

	return &DirectorySource{name: name, root: root, files: files}, nil
}

func (s *DirectorySource) Name() string {
	return s.name
}

func (s *DirectorySource) Len(context.Context) (int, error) {
	return len(s.files), nil
}

func (s *DirectorySource) Track(_ context.Context, index int) (*track.Track, error) {
	if err := checkIndex(index, len(s.files)); err != nil {
		return nil, err
	}
	path := s.files[index]

	t := &track.Track{
		ID:     path,
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		URL:    path,
		Source: s.name,
	}

	m, err := readTags(path)
	if err != nil {
		// Untagged files still play, under their file name.
		zlog.Debug().Msgf("no readable tags: path=%s error=%v", path, err)
		return t, nil
	}

	if title := m.Title(); title != "" {
		t.Name = title
	}
	artist := m.Artist()
	if artist == "" {
		artist = m.AlbumArtist()
	}
	if artist != "" {
		t.Artists = []string{artist}
	}
	t.Album = m.Album()
	return t, nil
}

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}

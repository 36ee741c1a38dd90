package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/shufflebox/internal/domain/track"
	"github.com/osa030/shufflebox/internal/infra/config"
	"github.com/osa030/shufflebox/internal/infra/lastfm"
)

type fakeSpotify struct {
	tracks []track.Track
	err    error
}

func (f *fakeSpotify) PlaylistLength(context.Context, string) (int, error) {
	return len(f.tracks), f.err
}

func (f *fakeSpotify) PlaylistTrackAt(_ context.Context, _ string, offset int) (*track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	t := f.tracks[offset]
	return &t, nil
}

func TestStaticSource_FromSettings(t *testing.T) {
	settings := map[string]any{
		"tracks": []any{
			map[string]any{"id": "rain", "name": "Rain", "duration_sec": 600},
			map[string]any{"id": "cafe", "name": "Cafe", "artists": []any{"Ambience Co"}},
		},
	}

	src, err := NewStaticSourceFromSettings("ambience", settings)
	require.NoError(t, err)

	ctx := context.Background()
	n, err := src.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := src.Track(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "rain", got.ID)
	assert.Equal(t, 10*time.Minute, got.Duration)
	assert.Equal(t, "ambience", got.Source)

	got, err = src.Track(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ambience Co"}, got.Artists)

	_, err = src.Track(ctx, 2)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestStaticSource_InvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{name: "no tracks", settings: map[string]any{}},
		{name: "track without name", settings: map[string]any{
			"tracks": []any{map[string]any{"id": "rain"}},
		}},
		{name: "wrong shape", settings: map[string]any{"tracks": "rain"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStaticSourceFromSettings("ambience", tt.settings)
			assert.Error(t, err)
		})
	}
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	}
}

func TestDirectorySource(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.mp3", "a.FLAC", "cover.jpg", "notes.txt", "disc2/c.ogg")

	tests := []struct {
		name      string
		recursive bool
		expected  []string
	}{
		{
			name:      "recursive",
			recursive: true,
			expected:  []string{"a", "b", "c"},
		},
		{
			name:      "top level only",
			recursive: false,
			expected:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewDirectorySource("local", root, tt.recursive)
			require.NoError(t, err)

			ctx := context.Background()
			n, err := src.Len(ctx)
			require.NoError(t, err)
			require.Equal(t, len(tt.expected), n)

			for i, want := range tt.expected {
				got, err := src.Track(ctx, i)
				require.NoError(t, err, "untagged files fall back to the file name")
				assert.Equal(t, want, got.Name)
				assert.Equal(t, "local", got.Source)
				assert.Empty(t, got.Artists)
			}

			_, err = src.Track(ctx, n)
			assert.True(t, errors.Is(err, ErrIndexOutOfRange))
		})
	}
}

func TestDirectorySource_FromSettings(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp3", "sub/b.mp3")

	src, err := NewDirectorySourceFromSettings("local", map[string]any{"path": root})
	require.NoError(t, err)
	n, _ := src.Len(context.Background())
	assert.Equal(t, 2, n, "recursive by default")

	src, err = NewDirectorySourceFromSettings("local", map[string]any{"path": root, "recursive": false})
	require.NoError(t, err)
	n, _ = src.Len(context.Background())
	assert.Equal(t, 1, n)

	_, err = NewDirectorySourceFromSettings("local", map[string]any{})
	assert.Error(t, err)

	_, err = NewDirectorySourceFromSettings("local", map[string]any{"path": filepath.Join(root, "a.mp3")})
	assert.Error(t, err, "a file is not a directory")
}

func TestSpotifyPlaylistSource(t *testing.T) {
	client := &fakeSpotify{tracks: []track.Track{{ID: "t1"}, {ID: "t2"}}}

	src, err := NewSpotifyPlaylistSource("lofi", client, map[string]any{"playlist_url": "spotify:playlist:abc"})
	require.NoError(t, err)

	ctx := context.Background()
	n, err := src.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := src.Track(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.ID)
	assert.Equal(t, "lofi", got.Source)

	_, err = src.Track(ctx, -1)
	assert.Error(t, err)

	client.err = errors.New("503 Service Unavailable")
	_, err = src.Len(ctx)
	assert.Error(t, err)
	_, err = src.Track(ctx, 0)
	assert.Error(t, err)

	_, err = NewSpotifyPlaylistSource("lofi", client, map[string]any{})
	assert.Error(t, err)
	_, err = NewSpotifyPlaylistSource("lofi", nil, map[string]any{"playlist_url": "x"})
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp3")

	cfg := &config.Config{
		Sources: []config.SourceConfig{
			{Name: "local", Type: TypeDirectory, Settings: map[string]any{"path": root}},
			{Name: "ambience", Type: TypeStatic, Settings: map[string]any{
				"tracks": []any{map[string]any{"id": "rain", "name": "Rain"}},
			}},
		},
	}

	reg, err := NewRegistryFromConfig(cfg, Clients{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ambience", "local"}, reg.Names())

	src, ok := reg.Get("local")
	require.True(t, ok)
	assert.Equal(t, "local", src.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestNewRegistryFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sources []config.SourceConfig
	}{
		{name: "no sources"},
		{name: "unknown type", sources: []config.SourceConfig{
			{Name: "yt", Type: "youtube", Settings: map[string]any{}},
		}},
		{name: "spotify without client", sources: []config.SourceConfig{
			{Name: "lofi", Type: TypeSpotify, Settings: map[string]any{"playlist_url": "x"}},
		}},
		{name: "lastfm without client", sources: []config.SourceConfig{
			{Name: "chart", Type: TypeLastFM, Settings: map[string]any{}},
		}},
		{name: "invalid settings", sources: []config.SourceConfig{
			{Name: "local", Type: TypeDirectory, Settings: map[string]any{}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistryFromConfig(&config.Config{Sources: tt.sources}, Clients{})
			assert.Error(t, err)
		})
	}
}

type fakeLastFM struct {
	calls int
	err   error
}

func (f *fakeLastFM) GetTagTopTracks(_ context.Context, tagName string, limit int) ([]lastfm.TopTrack, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []lastfm.TopTrack{
		{Name: tagName + " one", Artist: "Artist A", MBID: "mbid-1", Duration: 3 * time.Minute},
		{Name: tagName + " two", Artist: "Artist B", URL: "https://www.last.fm/music/b/_/two"},
	}, nil
}

func (f *fakeLastFM) GetChartTopTracks(_ context.Context, limit int) ([]lastfm.TopTrack, error) {
	f.calls++
	return []lastfm.TopTrack{{Name: "Hit", Artist: "Star", MBID: "hit"}}, nil
}

func TestLastFMSource(t *testing.T) {
	client := &fakeLastFM{}
	src, err := NewLastFMSource("jazz", client, map[string]any{"tag": "jazz", "limit": 50})
	require.NoError(t, err)

	ctx := context.Background()
	n, err := src.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tr, err := src.Track(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "mbid-1", tr.ID)
	assert.Equal(t, "jazz one", tr.Name)
	assert.Equal(t, []string{"Artist A"}, tr.Artists)
	assert.Equal(t, "jazz", tr.Source)

	tr, err = src.Track(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://www.last.fm/music/b/_/two", tr.ID, "URL identifies tracks without MBID")

	_, err = src.Track(ctx, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 1, client.calls, "list is fetched once")
}

func TestLastFMSource_Chart(t *testing.T) {
	src, err := NewLastFMSource("chart", &fakeLastFM{}, map[string]any{})
	require.NoError(t, err)

	tr, err := src.Track(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Hit", tr.Name)
}

func TestLastFMSource_Errors(t *testing.T) {
	_, err := NewLastFMSource("chart", nil, map[string]any{})
	assert.Error(t, err)

	_, err = NewLastFMSource("chart", &fakeLastFM{}, map[string]any{"limit": 5000})
	assert.Error(t, err)

	client := &fakeLastFM{err: errors.New("service unavailable")}
	src, err := NewLastFMSource("jazz", client, map[string]any{"tag": "jazz"})
	require.NoError(t, err)

	_, err = src.Len(context.Background())
	assert.Error(t, err)
	_, err = src.Len(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, client.calls, "failed fetches are retried")
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("shuffle/focus")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("shuffle/focus", []byte{1, 2, 3}))
			require.NoError(t, s.Set("shuffle/focus", []byte{4, 5}))

			v, ok, err := s.Get("shuffle/focus")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte{4, 5}, v)

			require.NoError(t, s.Delete("shuffle/focus"))
			_, ok, err = s.Get("shuffle/focus")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Delete("shuffle/never-set"))
		})
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	value := []byte{1, 2, 3}
	require.NoError(t, m.Set("k", value))
	value[0] = 9

	got, _, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shufflebox.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("shuffle/focus", []byte("snapshot")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get("shuffle/focus")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("snapshot"), v)
}

func TestOpen(t *testing.T) {
	s, err := Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(DriverSQLite, filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	_, err = Open("redis", "")
	assert.Error(t, err)
}

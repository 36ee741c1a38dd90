// Package source provides index-addressable track sources.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// ErrIndexOutOfRange is returned when a track index is outside the source.
var ErrIndexOutOfRange = errors.New("track index out of range")

// Source is a fixed-length, index-addressable list of tracks.
// Shuffle orders are built over [0, Len) and resolved one index at a time.
type Source interface {
	// Name returns the configured source name.
	Name() string
	// Len returns the number of tracks.
	Len(ctx context.Context) (int, error)
	// Track resolves the track at index.
	Track(ctx context.Context, index int) (*track.Track, error)
}

// Registry holds the configured sources by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates a registry from the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Names returns the sorted source names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkIndex(index, length int) error {
	if index < 0 || index >= length {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, length)
	}
	return nil
}

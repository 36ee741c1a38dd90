// Package session provides listening sessions and their owner.
package session

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/notification"
	"github.com/osa030/shufflebox/internal/app/source"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
)

// Errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownSource   = errors.New("unknown source")
	ErrEmptySource     = errors.New("source has no tracks")
	ErrSourceInUse     = errors.New("source already has an active session")
)

// SourceLookup resolves sources by name.
type SourceLookup interface {
	Get(name string) (source.Source, bool)
}

// Store persists shuffle snapshots.
type Store interface {
	shuffle.Storage
	Delete(key string) error
}

// Config holds manager configuration.
type Config struct {
	ChunkSize int              // Default chunk size for new sessions
	Shuffler  shuffle.Shuffler // nil: shuffle.DefaultShuffler
}

// StartOptions describes a session to start.
type StartOptions struct {
	Source      string
	StartIndex  int
	RandomStart bool // Pick the start index at random
	ChunkSize   int  // 0: manager default
	Resume      bool // Continue the stored pass for this source if any
}

// Manager owns the active players. Each source has at most one active
// session, since its snapshot key is derived from the source name.
type Manager struct {
	mu sync.RWMutex

	config   Config
	sources  SourceLookup
	store    Store
	notifier *notification.Manager

	players  map[string]*Player // by session ID
	bySource map[string]string  // source name -> session ID
}

// NewManager creates a new session manager.
func NewManager(cfg Config, sources SourceLookup, store Store, notifier *notification.Manager) *Manager {
	if cfg.Shuffler == nil {
		cfg.Shuffler = shuffle.DefaultShuffler
	}
	if notifier == nil {
		notifier = notification.NewManager()
	}
	return &Manager{
		config:   cfg,
		sources:  sources,
		store:    store,
		notifier: notifier,
		players:  make(map[string]*Player),
		bySource: make(map[string]string),
	}
}

// SnapshotKey returns the storage key of the shuffle snapshot for a source.
func SnapshotKey(sourceName string) string {
	return "shuffle/" + sourceName
}

// Start creates a session over a source and returns it.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*Player, error) {
	src, ok := m.sources.Get(opts.Source)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q", opts.Source)
	}
	if err := m.checkSourceFree(src.Name()); err != nil {
		return nil, err
	}

	// Len may be a network call and runs outside the lock.
	n, err := src.Len(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get length of source %q", src.Name())
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrEmptySource, "%q", src.Name())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, busy := m.bySource[src.Name()]; busy {
		return nil, errors.Wrapf(ErrSourceInUse, "source %q, session %s", src.Name(), id)
	}

	key := SnapshotKey(src.Name())
	var it *shuffle.Iterator
	if opts.Resume {
		it = m.restore(key, n)
	}
	if it == nil {
		if it, err = m.fresh(key, n, opts); err != nil {
			return nil, err
		}
	}

	p := NewPlayer(uuid.New().String(), src, it, m.notifier)
	m.players[p.ID()] = p
	m.bySource[src.Name()] = p.ID()

	zlog.Info().Msgf("session started: session=%s source=%s start=%d length=%d played=%d",
		p.ID(), src.Name(), it.StartIndex(), n, it.TotalPlayed())
	p.mu.Lock()
	p.notifyLocked(notification.EventSessionStarted, it.Current(), nil)
	p.mu.Unlock()

	return p, nil
}

func (m *Manager) checkSourceFree(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, busy := m.bySource[name]; busy {
		return errors.Wrapf(ErrSourceInUse, "source %q, session %s", name, id)
	}
	return nil
}

// restore returns the stored pass for key if it still fits a source of
// length n.
func (m *Manager) restore(key string, n int) *shuffle.Iterator {
	it, err := shuffle.Restore(m.store, key, shuffle.WithShuffler(m.config.Shuffler))
	switch {
	case errors.Is(err, shuffle.ErrNoSnapshot):
		return nil
	case err != nil:
		zlog.Warn().Msgf("cannot resume, starting fresh: key=%s error=%v", key, err)
		return nil
	case it.TotalLength() != n:
		zlog.Warn().Msgf("source length changed, starting fresh: key=%s stored=%d current=%d",
			key, it.TotalLength(), n)
		return nil
	}
	return it
}

// fresh discards any stored pass for key and starts a new one.
func (m *Manager) fresh(key string, n int, opts StartOptions) (*shuffle.Iterator, error) {
	if err := m.store.Delete(key); err != nil {
		zlog.Warn().Msgf("failed to discard snapshot: key=%s error=%v", key, err)
	}

	start := opts.StartIndex
	if opts.RandomStart {
		start = rand.IntN(n)
	}
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = m.config.ChunkSize
	}

	shuffleOpts := []shuffle.Option{
		shuffle.WithShuffler(m.config.Shuffler),
		shuffle.WithStorage(m.store, key),
	}
	if chunkSize > 0 {
		shuffleOpts = append(shuffleOpts, shuffle.WithChunkSize(chunkSize))
	}

	it, err := shuffle.New(start, n, shuffleOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shuffle")
	}
	return it, nil
}

// Get returns the player of a session.
func (m *Manager) Get(sessionID string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "%s", sessionID)
	}
	return p, nil
}

// Stop ends a session and discards its snapshot. Handles to the player that
// are still held elsewhere fail with ErrSessionNotFound afterwards.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[sessionID]
	if !ok {
		return errors.Wrapf(ErrSessionNotFound, "%s", sessionID)
	}
	delete(m.players, sessionID)
	delete(m.bySource, p.SourceName())

	// Detach first so an in-flight call cannot write the snapshot back.
	p.stop()
	if err := m.store.Delete(SnapshotKey(p.SourceName())); err != nil {
		zlog.Warn().Msgf("failed to discard snapshot: session=%s error=%v", sessionID, err)
	}

	zlog.Info().Msgf("session stopped: session=%s source=%s", sessionID, p.SourceName())
	return nil
}

// List returns the status of every active session, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.RUnlock()

	result := make([]Status, 0, len(players))
	for _, p := range players {
		result = append(result, p.Status())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// Close drops every session but keeps their snapshots so they can be
// resumed after a restart.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	zlog.Info().Msgf("closing session manager: sessions=%d", len(m.players))
	m.players = make(map[string]*Player)
	m.bySource = make(map[string]string)
	m.notifier.Close()
}


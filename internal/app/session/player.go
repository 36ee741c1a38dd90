package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shufflebox/internal/app/notification"
	"github.com/osa030/shufflebox/internal/app/source"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
	"github.com/osa030/shufflebox/internal/domain/track"
)

// Errors
var (
	ErrEndOfPlaylist     = errors.New("end of playlist")
	ErrNoPrevious        = errors.New("no previous track")
	ErrNothingPlaying    = errors.New("nothing playing")
	ErrInvalidRepeatMode = errors.New("invalid repeat mode")
)

// Notifier receives session events.
type Notifier interface {
	Broadcast(event *notification.Event)
}

// Step is the result of a navigation.
type Step struct {
	Index       int          // Track index in the source
	Track       *track.Track // Resolved track, nil if the source failed
	State       shuffle.State
	TotalPlayed int
	TotalLength int
}

// Status is a point-in-time view of a player.
type Status struct {
	SessionID   string
	Source      string
	StartIndex  int
	Current     int // -1 if nothing playing
	TotalPlayed int
	TotalLength int
	Drawn       int // Length of the generated order
	ChunkSize   int
	State       shuffle.State
	Completed   bool
	Repeat      RepeatMode
	StartedAt   time.Time
}

// Player is one listening session over a source. It owns its iterator
// exclusively and serializes every call on it.
type Player struct {
	mu sync.Mutex

	id        string
	source    source.Source
	it        *shuffle.Iterator
	repeat    RepeatMode
	notifier  Notifier
	startedAt time.Time
	stopped   bool
}

// NewPlayer creates a player around an iterator built for src.
func NewPlayer(id string, src source.Source, it *shuffle.Iterator, notifier Notifier) *Player {
	return &Player{
		id:        id,
		source:    src,
		it:        it,
		notifier:  notifier,
		startedAt: time.Now(),
	}
}

// ID returns the session ID.
func (p *Player) ID() string {
	return p.id
}

// SourceName returns the name of the source the player shuffles.
func (p *Player) SourceName() string {
	return p.source.Name()
}

// Next moves to the next track. A finished chunk is topped up transparently.
// At the end of the pass, repeat-all replays the same order from its start
// track and repeat-off returns ErrEndOfPlaylist. Repeat-one returns the
// current track again.
func (p *Player) Next(ctx context.Context) (*Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, p.stoppedErr()
	}
	if p.repeat == RepeatOne && p.it.Current() >= 0 {
		return p.moveLocked(ctx, p.it.Current()), nil
	}

	wasCompleted := p.it.Completed()
	idx := p.it.Next()
	if idx == -1 {
		switch p.it.State() {
		case shuffle.StateHasEndedAndMoreChunks:
			p.it.InitNextChunk()
			p.notifyLocked(notification.EventChunkLoaded, -1, nil)
			idx = p.it.Next()

		case shuffle.StateHasEndedNoChunks:
			if !wasCompleted && p.it.Completed() {
				p.notifyLocked(notification.EventPassCompleted, -1, nil)
			}
			if p.repeat != RepeatAll {
				return nil, ErrEndOfPlaylist
			}
			p.it.ResetForRepeat()
			idx = p.it.Current()
			zlog.Info().Msgf("pass completed, repeating: session=%s source=%s", p.id, p.source.Name())
		}
	}

	if idx == -1 {
		return nil, errors.AssertionFailedf("iterator returned no index in state %s", p.it.State())
	}
	return p.moveLocked(ctx, idx), nil
}

// Prev moves back to the previous track of the pass.
func (p *Player) Prev(ctx context.Context) (*Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, p.stoppedErr()
	}
	idx := p.it.Prev()
	if idx == -1 {
		return nil, ErrNoPrevious
	}
	return p.moveLocked(ctx, idx), nil
}

// Current returns the track under the cursor.
func (p *Player) Current(ctx context.Context) (*Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, p.stoppedErr()
	}
	idx := p.it.Current()
	if idx == -1 {
		return nil, ErrNothingPlaying
	}
	return p.stepLocked(ctx, idx), nil
}

// Restart invalidates the current track without discarding the order; the
// next call to Next replays the pass from its start track.
func (p *Player) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.stoppedErr()
	}
	p.it.InvalidateCurrent()
	p.notifyLocked(notification.EventTrackChanged, -1, nil)
	return nil
}

// SetRepeat switches the repeat mode.
func (p *Player) SetRepeat(mode RepeatMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.stoppedErr()
	}
	if p.repeat == mode {
		return nil
	}
	p.repeat = mode
	p.notifyLocked(notification.EventRepeatChanged, p.it.Current(), nil)
	return nil
}

// stop ends the player. The iterator no longer writes to storage, so once
// stop returns the caller may discard the snapshot for good.
func (p *Player) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	p.it.DetachStorage()
	p.notifyLocked(notification.EventSessionStopped, -1, nil)
}

func (p *Player) stoppedErr() error {
	return errors.Wrapf(ErrSessionNotFound, "%s (stopped)", p.id)
}

// Status returns the current player status.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		SessionID:   p.id,
		Source:      p.source.Name(),
		StartIndex:  p.it.StartIndex(),
		Current:     p.it.Current(),
		TotalPlayed: p.it.TotalPlayed(),
		TotalLength: p.it.TotalLength(),
		Drawn:       len(p.it.Order()),
		ChunkSize:   p.it.ChunkSize(),
		State:       p.it.State(),
		Completed:   p.it.Completed(),
		Repeat:      p.repeat,
		StartedAt:   p.startedAt,
	}
}

// moveLocked resolves idx and announces the track change.
func (p *Player) moveLocked(ctx context.Context, idx int) *Step {
	step := p.stepLocked(ctx, idx)
	p.notifyLocked(notification.EventTrackChanged, idx, step.Track)
	return step
}

// stepLocked resolves idx through the source. Resolution failures leave the
// track nil so playback can skip it instead of stopping.
func (p *Player) stepLocked(ctx context.Context, idx int) *Step {
	t, err := p.source.Track(ctx, idx)
	if err != nil {
		zlog.Warn().Msgf("failed to resolve track: session=%s source=%s index=%d error=%v",
			p.id, p.source.Name(), idx, err)
		t = nil
	}
	return &Step{
		Index:       idx,
		Track:       t,
		State:       p.it.State(),
		TotalPlayed: p.it.TotalPlayed(),
		TotalLength: p.it.TotalLength(),
	}
}

func (p *Player) notifyLocked(eventType notification.EventType, idx int, t *track.Track) {
	if p.notifier == nil {
		return
	}
	p.notifier.Broadcast(&notification.Event{
		Type:        eventType,
		SessionID:   p.id,
		Source:      p.source.Name(),
		Index:       idx,
		Track:       t,
		TotalPlayed: p.it.TotalPlayed(),
		TotalLength: p.it.TotalLength(),
		State:       p.it.State().String(),
		Repeat:      p.repeat.String(),
		Time:        time.Now(),
	})
}

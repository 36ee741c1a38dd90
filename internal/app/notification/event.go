package notification

import (
	"time"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// EventType represents a session event type.
type EventType string

const (
	EventSessionStarted EventType = "session_started" // Session created or resumed
	EventTrackChanged   EventType = "track_changed"   // Cursor moved to another track
	EventChunkLoaded    EventType = "chunk_loaded"    // Next chunk appended to the order
	EventPassCompleted  EventType = "pass_completed"  // Every track of the pass was visited
	EventRepeatChanged  EventType = "repeat_changed"  // Repeat mode switched
	EventSessionStopped EventType = "session_stopped" // Session discarded
)

// Event describes a change in a listening session.
type Event struct {
	SequenceNo  uint64
	Type        EventType
	SessionID   string
	Source      string
	Index       int          // Track index under the cursor, -1 if none
	Track       *track.Track // Resolved track (nil if unresolved)
	TotalPlayed int
	TotalLength int
	State       string // Iterator state
	Repeat      string // Repeat mode
	Time        time.Time
}

package connect

import (
	"time"

	"github.com/osa030/shufflebox/internal/app/notification"
	"github.com/osa030/shufflebox/internal/app/session"
	"github.com/osa030/shufflebox/internal/domain/track"
)

// NotificationTypeInitialState is sent once at the start of a subscription
// that targets a single session.
const NotificationTypeInitialState = "initial_state"

// Empty is the message of procedures without parameters or results.
type Empty struct{}

// SessionRequest addresses a single session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// StartSessionRequest is the request of StartSession.
type StartSessionRequest struct {
	Source      string `json:"source"`
	StartIndex  int    `json:"start_index"`
	RandomStart bool   `json:"random_start,omitempty"`
	ChunkSize   int    `json:"chunk_size,omitempty"`
	Resume      bool   `json:"resume,omitempty"`
	Repeat      string `json:"repeat,omitempty"`
}

// SetRepeatRequest is the request of SetRepeat.
type SetRepeatRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SubscribeRequest is the request of Subscribe. An empty session ID
// subscribes to every session.
type SubscribeRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// TrackInfo describes a resolved track.
type TrackInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
	URL        string   `json:"url,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// StepResponse is the result of a navigation.
type StepResponse struct {
	Index       int        `json:"index"`
	Track       *TrackInfo `json:"track,omitempty"`
	State       string     `json:"state"`
	TotalPlayed int        `json:"total_played"`
	TotalLength int        `json:"total_length"`
}

// SessionStatus describes a session.
type SessionStatus struct {
	SessionID   string    `json:"session_id"`
	Source      string    `json:"source"`
	StartIndex  int       `json:"start_index"`
	Current     int       `json:"current"`
	TotalPlayed int       `json:"total_played"`
	TotalLength int       `json:"total_length"`
	Drawn       int       `json:"drawn"`
	ChunkSize   int       `json:"chunk_size"`
	State       string    `json:"state"`
	Completed   bool      `json:"completed"`
	Repeat      string    `json:"repeat"`
	StartedAt   time.Time `json:"started_at"`
}

// ListSessionsResponse is the response of ListSessions.
type ListSessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// ListSourcesResponse is the response of ListSources.
type ListSourcesResponse struct {
	Sources []string `json:"sources"`
}

// Notification is a session event delivered through Subscribe.
type Notification struct {
	SequenceNo  uint64     `json:"sequence_no"`
	Type        string     `json:"type"`
	SessionID   string     `json:"session_id"`
	Source      string     `json:"source"`
	Index       int        `json:"index"`
	Track       *TrackInfo `json:"track,omitempty"`
	TotalPlayed int        `json:"total_played"`
	TotalLength int        `json:"total_length"`
	State       string     `json:"state"`
	Repeat      string     `json:"repeat"`
	Time        time.Time  `json:"time"`
}

func toTrackInfo(t *track.Track) *TrackInfo {
	if t == nil {
		return nil
	}
	return &TrackInfo{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    t.Artists,
		Album:      t.Album,
		DurationMs: t.Duration.Milliseconds(),
		URL:        t.URL,
		Source:     t.Source,
	}
}

func toStepResponse(step *session.Step) *StepResponse {
	return &StepResponse{
		Index:       step.Index,
		Track:       toTrackInfo(step.Track),
		State:       step.State.String(),
		TotalPlayed: step.TotalPlayed,
		TotalLength: step.TotalLength,
	}
}

func toSessionStatus(s session.Status) SessionStatus {
	return SessionStatus{
		SessionID:   s.SessionID,
		Source:      s.Source,
		StartIndex:  s.StartIndex,
		Current:     s.Current,
		TotalPlayed: s.TotalPlayed,
		TotalLength: s.TotalLength,
		Drawn:       s.Drawn,
		ChunkSize:   s.ChunkSize,
		State:       s.State.String(),
		Completed:   s.Completed,
		Repeat:      s.Repeat.String(),
		StartedAt:   s.StartedAt,
	}
}

func toNotification(e *notification.Event) *Notification {
	return &Notification{
		SequenceNo:  e.SequenceNo,
		Type:        string(e.Type),
		SessionID:   e.SessionID,
		Source:      e.Source,
		Index:       e.Index,
		Track:       toTrackInfo(e.Track),
		TotalPlayed: e.TotalPlayed,
		TotalLength: e.TotalLength,
		State:       e.State,
		Repeat:      e.Repeat,
		Time:        e.Time,
	}
}

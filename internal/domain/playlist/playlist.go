// Package playlist provides the in-memory Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/shufflebox/internal/domain/track"
)

// Playlist is an ordered, fully loaded list of tracks.
type Playlist struct {
	ID     string        // Playlist identifier
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in the playlist
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// TrackAt returns the track at index i.
func (p *Playlist) TrackAt(i int) (*track.Track, bool) {
	if i < 0 || i >= len(p.Tracks) {
		return nil, false
	}
	t := p.Tracks[i]
	return &t, true
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playable item resolved from a source.
type Track struct {
	ID       string        // Source-specific ID (Spotify ID, file path, config ID)
	Name     string        // Track name
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration (zero if unknown)
	URL      string        // Spotify URL or local file path
	Source   string        // Name of the source the track came from
}

// DisplayName returns "Artist, Artist - Name", or just the name when no
// artist is known.
func (t *Track) DisplayName() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

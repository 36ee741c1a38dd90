package session

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// RepeatMode represents what happens when a pass ends.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the pass
	RepeatAll                   // Replay the same order from the start
	RepeatOne                   // Keep playing the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// ParseRepeatMode converts a string to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, errors.Wrapf(ErrInvalidRepeatMode, "%q", s)
	}
}

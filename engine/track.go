package engine

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// Track is an immutable reference to a playable asset, resolved by the
// track library collaborator.
type Track struct {
	ID       string
	Title    string
	Path     string
	Duration time.Duration
}

// TrackResolver is the track library collaborator contract.
type TrackResolver interface {
	Resolve(trackID string) (Track, error)
}

// trackSource is the decoded-asset contract the engine consumes.
// *audio.Source satisfies it; tests substitute in-memory sources.
type trackSource interface {
	beep.Streamer
	Len() int
	Position() int
	Seek(p int) error
	Close() error
	Format() beep.Format
}

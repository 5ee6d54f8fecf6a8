package engine

// State represents the playback state visible to collaborators.
type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	// StateCrossfadingOut: two channels active, the audible track fading out.
	StateCrossfadingOut
	// StateCrossfadingIn: the incoming channel is alone but still fading in.
	// Observed after a skip force-completed the outgoing channel.
	StateCrossfadingIn
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateCrossfadingOut:
		return "CrossfadingOut"
	case StateCrossfadingIn:
		return "CrossfadingIn"
	default:
		return "Unknown"
	}
}

// IsActive returns true if playback is active (playing, paused or fading).
func (s State) IsActive() bool {
	return s != StateStopped
}

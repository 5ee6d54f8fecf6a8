package engine

import "errors"

// maxChannels is the hard cap on concurrently active channels: the
// current track plus one incoming track during a crossfade.
const maxChannels = 2

var errMixerFull = errors.New("mixer already has two active channels")

// Mixer sums the frames of all active channels into a single output
// stream, applying each channel's envelope gain and its own master gain.
type Mixer struct {
	channels []*channel
	master   float64
}

// NewMixer creates a mixer with the given master gain.
func NewMixer(master float64) *Mixer {
	return &Mixer{master: clamp01(master)}
}

// add activates a channel. The scheduler guarantees the two-channel
// invariant; exceeding it is a programming error.
func (m *Mixer) add(c *channel) error {
	if len(m.channels) >= maxChannels {
		return errMixerFull
	}
	m.channels = append(m.channels, c)
	return nil
}

// remove detaches and closes a channel immediately.
func (m *Mixer) remove(c *channel) {
	for i, ch := range m.channels {
		if ch == c {
			m.channels = append(m.channels[:i], m.channels[i+1:]...)
			c.close()
			return
		}
	}
}

// Mix advances every active channel by len(dst) frames, sums them with the
// master gain applied and clips the result to the valid output range.
// Channels whose fade-out completed or whose source ended are removed.
// Returns the channels removed this block.
func (m *Mixer) Mix(dst [][2]float64) []*channel {
	for i := range dst {
		dst[i][0] = 0
		dst[i][1] = 0
	}
	for _, c := range m.channels {
		c.advance(dst)
	}
	for i := range dst {
		dst[i][0] = clip(dst[i][0] * m.master)
		dst[i][1] = clip(dst[i][1] * m.master)
	}

	var removed []*channel
	kept := m.channels[:0]
	for _, c := range m.channels {
		if c.finished() {
			c.close()
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	m.channels = kept
	return removed
}

// Active returns the number of active channels.
func (m *Mixer) Active() int {
	return len(m.channels)
}

// SetMaster sets the master gain. Per-channel crossfade envelopes are
// unaffected, so fade ratios survive volume changes.
func (m *Mixer) SetMaster(v float64) {
	m.master = clamp01(v)
}

// Master returns the master gain.
func (m *Mixer) Master() float64 {
	return m.master
}

// clear closes and removes every channel.
func (m *Mixer) clear() {
	for _, c := range m.channels {
		c.close()
	}
	m.channels = nil
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

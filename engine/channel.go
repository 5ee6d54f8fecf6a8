package engine

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// channel is one active playback slot: a source, a position cursor and a
// gain envelope. It is created when a track starts (or pre-loads for a
// crossfade) and removed once its fade-out completes or its source ends.
type channel struct {
	track  Track
	src    trackSource
	stream beep.Streamer // src resampled to the engine rate, or src itself
	rate   beep.SampleRate

	pos       int // engine-rate frames consumed
	gain      float64
	env       *envelope
	fadingOut bool
	eof       bool

	scratch [][2]float64
}

// newChannel wraps src for playback at the engine sample rate.
func newChannel(track Track, src trackSource, rate beep.SampleRate, gain float64) *channel {
	var stream beep.Streamer = src
	if src.Format().SampleRate != rate {
		stream = beep.Resample(4, src.Format().SampleRate, rate, src)
	}
	return &channel{
		track:  track,
		src:    src,
		stream: stream,
		rate:   rate,
		gain:   gain,
	}
}

// setFade installs a gain trajectory from the channel's current gain (or an
// explicit start) to end over the given duration.
func (c *channel) setFade(start, end float64, d time.Duration, curve Curve) {
	c.env = &envelope{
		start:  start,
		end:    end,
		length: c.rate.N(d),
		curve:  curve,
	}
	c.fadingOut = end < start
}

// advance streams up to len(dst) frames, applies the per-frame envelope
// gain and accumulates the result into dst. Returns frames produced.
func (c *channel) advance(dst [][2]float64) int {
	if c.eof {
		return 0
	}
	if cap(c.scratch) < len(dst) {
		c.scratch = make([][2]float64, len(dst))
	}
	buf := c.scratch[:len(dst)]

	total := 0
	for total < len(dst) {
		n, ok := c.stream.Stream(buf[total:])
		for i := total; i < total+n; i++ {
			if c.env != nil {
				c.gain = c.env.step()
			}
			dst[i][0] += buf[i][0] * c.gain
			dst[i][1] += buf[i][1] * c.gain
		}
		total += n
		if !ok {
			c.eof = true
			break
		}
		if n == 0 {
			break
		}
	}
	c.pos += total
	return total
}

// fadeComplete reports whether the installed trajectory has finished.
func (c *channel) fadeComplete() bool {
	return c.env != nil && c.env.done()
}

// finished reports whether the mixer should remove this channel: either a
// completed fade to silence, or the source reached end of stream.
func (c *channel) finished() bool {
	if c.eof {
		return true
	}
	return c.fadingOut && c.fadeComplete()
}

// fadingIn reports whether an upward trajectory is still in progress.
func (c *channel) fadingIn() bool {
	return c.env != nil && !c.fadingOut && !c.env.done()
}

// position returns the playback position in track time.
func (c *channel) position() time.Duration {
	return c.rate.D(c.pos)
}

// remaining returns the unplayed portion of the source.
func (c *channel) remaining() time.Duration {
	sr := c.src.Format().SampleRate
	left := c.src.Len() - c.src.Position()
	if left < 0 {
		left = 0
	}
	return sr.D(left)
}

// seek repositions the source cursor. The target is validated by the
// caller against the track duration.
func (c *channel) seek(pos time.Duration) error {
	sr := c.src.Format().SampleRate
	if err := c.src.Seek(sr.N(pos)); err != nil {
		return err
	}
	c.pos = c.rate.N(pos)
	c.eof = false
	return nil
}

// close releases the source.
func (c *channel) close() {
	if c.src != nil {
		c.src.Close()
	}
}

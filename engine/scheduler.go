package engine

import (
	"log/slog"
	"time"

	"github.com/gopxl/beep/v2"
)

// schedState is the scheduler's internal state.
type schedState int

const (
	schedIdle schedState = iota
	schedSingleTrack
	schedTransitioning
)

const (
	// guardInterval is subtracted from a clamped crossfade so a short next
	// track never schedules a second overlapping transition.
	guardInterval = 200 * time.Millisecond

	// prefetchLead is how long before the transition point the next source
	// is opened on the background worker.
	prefetchLead = 2 * time.Second
)

// prefetched is a decoded next track waiting to be activated.
type prefetched struct {
	track Track
	src   trackSource
}

// scheduler drives channel transitions: it activates the incoming channel
// near the end of the current track and sets both gain envelopes. All of
// its methods run on the mixing goroutine.
type scheduler struct {
	mixer   *Mixer
	rate    beep.SampleRate
	curve   Curve
	fade    time.Duration
	enabled bool
	logger  *slog.Logger

	state    schedState
	current  *channel
	incoming *channel

	pending  *prefetched
	awaiting bool

	// Callbacks into the controller, all invoked on the mixing goroutine.
	hasNext     func() bool
	popNext     func() (Track, bool)
	requestOpen func(track Track)
}

// playNow activates a freshly opened track. From idle it becomes the sole
// channel at full gain; during playback it behaves like a skip to that
// track, crossfading when enabled.
func (s *scheduler) playNow(track Track, src trackSource) {
	if s.state == schedIdle {
		ch := newChannel(track, src, s.rate, 1.0)
		if err := s.mixer.add(ch); err != nil {
			s.logger.Error("Failed to activate channel", slog.Any("error", err))
			src.Close()
			return
		}
		s.current = ch
		s.state = schedSingleTrack
		return
	}
	s.skipTo(track, src)
}

// skipTo transitions to an already opened track. If a transition is in
// progress, the outgoing channel is force-completed first so no more than
// two channels ever coexist.
func (s *scheduler) skipTo(track Track, src trackSource) {
	if s.state == schedTransitioning {
		s.mixer.remove(s.current)
		s.current = s.incoming
		s.incoming = nil
		s.state = schedSingleTrack
	}
	s.dropPending()

	if s.current == nil {
		s.playNow(track, src)
		return
	}

	if s.enabled && s.fade > 0 {
		s.beginTransition(track, src)
		return
	}

	// Hard cut
	s.mixer.remove(s.current)
	ch := newChannel(track, src, s.rate, 1.0)
	if err := s.mixer.add(ch); err != nil {
		s.logger.Error("Failed to activate channel", slog.Any("error", err))
		src.Close()
		s.current = nil
		s.state = schedIdle
		return
	}
	s.current = ch
	s.state = schedSingleTrack
}

// beginTransition starts a crossfade from the current channel into the
// given track. The fade duration is clamped when the next track is shorter
// than the configured duration.
func (s *scheduler) beginTransition(track Track, src trackSource) {
	d := s.fade
	next := src.Format().SampleRate.D(src.Len())
	if next-guardInterval < d {
		d = next - guardInterval
		if d < 0 {
			d = 0
		}
		s.logger.Debug("Crossfade clamped to next track length",
			slog.Duration("duration", d), slog.String("track", track.ID))
	}

	in := newChannel(track, src, s.rate, 0)
	in.setFade(0, 1, d, s.curve)
	if err := s.mixer.add(in); err != nil {
		s.logger.Error("Failed to activate incoming channel", slog.Any("error", err))
		src.Close()
		return
	}
	s.current.setFade(s.current.gain, 0, d, s.curve)
	s.incoming = in
	s.state = schedTransitioning
}

// deliverPrefetch stores an opened next track for the upcoming transition.
func (s *scheduler) deliverPrefetch(track Track, src trackSource) {
	s.dropPending()
	s.pending = &prefetched{track: track, src: src}
	s.awaiting = false
}

// prefetchFailed clears the outstanding request; tick will ask for the new
// queue head on the next block.
func (s *scheduler) prefetchFailed() {
	s.awaiting = false
}

// dropPending discards a prefetched source that will not be used.
func (s *scheduler) dropPending() {
	if s.pending != nil {
		s.pending.src.Close()
		s.pending = nil
	}
}

// tick runs once per mixed block, after Mix removed finished channels.
// It promotes completed transitions, starts new ones when the current
// track is near its end and keeps the prefetch pipeline primed.
func (s *scheduler) tick(removed []*channel) {
	for _, c := range removed {
		switch c {
		case s.current:
			// Outgoing fade completed or track ended
			s.current = s.incoming
			s.incoming = nil
			if s.current != nil {
				s.state = schedSingleTrack
			} else {
				s.state = schedIdle
			}
		case s.incoming:
			// Incoming ended mid-fade (next track shorter than the fade)
			s.incoming = nil
			if s.state == schedTransitioning {
				s.state = schedSingleTrack
			}
		}
	}

	if s.state != schedSingleTrack || s.current == nil {
		if s.state == schedIdle && s.pending != nil {
			// Queue advanced past a track that ended before its
			// transition could start
			p := s.pending
			s.pending = nil
			s.playNow(p.track, p.src)
		}
		return
	}

	rem := s.current.remaining()

	if s.pending != nil {
		if !s.enabled || s.fade <= 0 {
			return // hard cut happens when the current channel ends
		}
		if rem <= s.fade {
			p := s.pending
			s.pending = nil
			s.beginTransition(p.track, p.src)
		}
		return
	}

	if s.awaiting || !s.hasNext() {
		return
	}
	lead := prefetchLead
	if s.enabled {
		lead += s.fade
	}
	if rem <= lead {
		if track, ok := s.popNext(); ok {
			s.awaiting = true
			s.requestOpen(track)
		}
	}
}

// visibleState maps the scheduler state to the public playback state.
func (s *scheduler) visibleState() State {
	switch {
	case s.state == schedIdle:
		if s.awaiting || s.pending != nil {
			// Between tracks, waiting on the background worker
			return StatePlaying
		}
		return StateStopped
	case s.state == schedTransitioning:
		return StateCrossfadingOut
	case s.current != nil && s.current.fadingIn():
		return StateCrossfadingIn
	default:
		return StatePlaying
	}
}

// reset closes everything and returns to idle.
func (s *scheduler) reset() {
	s.dropPending()
	s.mixer.clear()
	s.current = nil
	s.incoming = nil
	s.awaiting = false
	s.state = schedIdle
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"

	"segue/audio"
)

var (
	// ErrQueueEmpty is returned by Skip when no track is queued.
	ErrQueueEmpty = errors.New("no track queued")

	// ErrNotPlaying is returned when an operation requires active playback.
	ErrNotPlaying = errors.New("playback is not active")

	// ErrVolumeRange is returned by SetVolume for levels outside [0,1].
	ErrVolumeRange = errors.New("volume must be between 0 and 1")
)

const commandQueueSize = 64

// Config holds the playback-engine settings, passed explicitly at
// construction rather than looked up from ambient state.
type Config struct {
	SampleRate        int
	BufferSize        time.Duration
	CrossfadeEnabled  bool
	CrossfadeDuration time.Duration
	FadeCurve         string
	DefaultVolume     float64
	PositionInterval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 100 * time.Millisecond
	}
	if c.FadeCurve == "" {
		c.FadeCurve = "equalpower"
	}
	if c.PositionInterval <= 0 {
		c.PositionInterval = 500 * time.Millisecond
	}
}

// command is one deferred mutation, applied atomically at the start of the
// next frame-block callback. Commands from a superseded epoch are dropped;
// discard releases any resources they carried.
type command struct {
	epoch   uint64
	apply   func()
	discard func()
}

// Controller is the public playback facade. UI and REST collaborators call
// its methods; it translates them into channel and scheduler operations on
// the mixing goroutine and emits playback-state events back.
type Controller struct {
	cfg      Config
	rate     beep.SampleRate
	logger   *slog.Logger
	device   audio.Device
	resolver TrackResolver

	// open is the decode entry point; tests substitute in-memory sources
	open func(path string) (trackSource, error)

	mixer *Mixer
	sched *scheduler

	cmds       chan command
	epoch      atomic.Uint64
	prefetchCh chan prefetchJob
	events     broadcaster
	wg         sync.WaitGroup

	// mu serializes device session start/stop. While the device is down it
	// also covers direct engine-state access; while it runs, engine state
	// is only touched on the mixing goroutine.
	mu      sync.Mutex
	running bool

	// Mixing-goroutine state
	queue         []Track
	paused        bool
	skipOnDeliver bool
	frameAcc      int
	lastState     State
	lastTrackID   string

	// Published snapshots for lock-free reads
	pubState  atomic.Int32
	pubTrack  atomic.Pointer[Track]
	pubPosMs  atomic.Int64
	pubDurMs  atomic.Int64
	pubVol    atomic.Uint64
	nextAvail atomic.Int32
}

type prefetchJob struct {
	track Track
	epoch uint64
}

// NewController builds the engine around the given collaborators.
func NewController(cfg Config, resolver TrackResolver, device audio.Device) (*Controller, error) {
	cfg.applyDefaults()
	curve, err := CurveByName(cfg.FadeCurve)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		rate:       beep.SampleRate(cfg.SampleRate),
		logger:     slog.With("component", "engine"),
		device:     device,
		resolver:   resolver,
		mixer:      NewMixer(cfg.DefaultVolume),
		cmds:       make(chan command, commandQueueSize),
		prefetchCh: make(chan prefetchJob, 4),
	}
	c.open = func(path string) (trackSource, error) {
		return audio.Open(path)
	}
	c.sched = &scheduler{
		mixer:   c.mixer,
		rate:    c.rate,
		curve:   curve,
		fade:    cfg.CrossfadeDuration,
		enabled: cfg.CrossfadeEnabled,
		logger:  c.logger,
		hasNext: func() bool { return len(c.queue) > 0 },
		popNext: c.popNext,
		requestOpen: func(track Track) {
			select {
			case c.prefetchCh <- prefetchJob{track: track, epoch: c.epoch.Load()}:
			default:
				c.sched.awaiting = false
			}
		},
	}
	c.pubState.Store(int32(StateStopped))
	c.pubVol.Store(math.Float64bits(c.mixer.Master()))

	c.wg.Add(1)
	go c.prefetchWorker()

	return c, nil
}

// Subscribe registers a collaborator for playback-state events.
func (c *Controller) Subscribe() *Subscription {
	return c.events.subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Controller) Unsubscribe(sub *Subscription) {
	c.events.unsubscribe(sub)
}

// State returns the last published playback state.
func (c *Controller) State() State {
	return State(c.pubState.Load())
}

// Position returns the playback position of the current track.
func (c *Controller) Position() time.Duration {
	return time.Duration(c.pubPosMs.Load()) * time.Millisecond
}

// Volume returns the master gain.
func (c *Controller) Volume() float64 {
	return math.Float64frombits(c.pubVol.Load())
}

// CurrentTrack returns the audible track, if any.
func (c *Controller) CurrentTrack() (Track, bool) {
	t := c.pubTrack.Load()
	if t == nil {
		return Track{}, false
	}
	return *t, true
}

// Play resolves and starts the given track. While already playing it
// behaves like a skip to that track: crossfade when enabled, hard cut
// otherwise. Decode and device failures surface to the caller without
// touching the current playback state.
func (c *Controller) Play(trackID string) error {
	track, err := c.resolver.Resolve(trackID)
	if err != nil {
		return fmt.Errorf("resolve track %s: %w", trackID, err)
	}
	src, err := c.open(track.Path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.ensureSessionLocked(); err != nil {
		c.mu.Unlock()
		src.Close()
		return err
	}
	c.mu.Unlock()

	c.logger.Info("Playing track", slog.String("track", track.ID), slog.String("title", track.Title))
	c.enqueue(command{
		epoch:   c.epoch.Load(),
		apply:   func() { c.sched.playNow(track, src) },
		discard: func() { src.Close() },
	})
	return nil
}

// Queue appends a track to the upcoming queue. The file is not decoded
// until the prefetch worker opens it ahead of its transition.
func (c *Controller) Queue(trackID string) error {
	track, err := c.resolver.Resolve(trackID)
	if err != nil {
		return fmt.Errorf("resolve track %s: %w", trackID, err)
	}
	c.enqueue(command{
		epoch: c.epoch.Load(),
		apply: func() {
			c.queue = append(c.queue, track)
			c.updateNextAvail()
		},
	})
	c.nextAvail.Add(1)
	return nil
}

// Pause suspends playback. No-op unless playback is active.
func (c *Controller) Pause() error {
	if st := c.State(); st != StatePlaying && st != StateCrossfadingOut && st != StateCrossfadingIn {
		return nil
	}
	c.enqueue(command{epoch: c.epoch.Load(), apply: func() { c.paused = true }})
	return nil
}

// Resume continues playback. No-op unless paused.
func (c *Controller) Resume() error {
	if c.State() != StatePaused {
		return nil
	}
	c.enqueue(command{epoch: c.epoch.Load(), apply: func() { c.paused = false }})
	return nil
}

// Skip transitions to the next queued track immediately. During an active
// crossfade the outgoing channel is force-completed first.
func (c *Controller) Skip() error {
	if !c.State().IsActive() {
		return ErrNotPlaying
	}
	if c.nextAvail.Load() == 0 {
		return ErrQueueEmpty
	}
	c.enqueue(command{epoch: c.epoch.Load(), apply: c.applySkip})
	return nil
}

// applySkip runs on the mixing goroutine.
func (c *Controller) applySkip() {
	switch {
	case c.sched.pending != nil:
		p := c.sched.pending
		c.sched.pending = nil
		c.sched.skipTo(p.track, p.src)
	case c.sched.awaiting:
		// The queue head is already being opened; redirect its delivery
		c.skipOnDeliver = true
	default:
		track, ok := c.popNext()
		if !ok {
			return
		}
		c.sched.awaiting = true
		c.skipOnDeliver = true
		c.sched.requestOpen(track)
	}
	c.updateNextAvail()
}

// Seek repositions the current track. Positions outside the track bounds
// return a *audio.SeekError and leave playback state unchanged.
func (c *Controller) Seek(pos time.Duration) error {
	if !c.State().IsActive() {
		return ErrNotPlaying
	}
	dur := time.Duration(c.pubDurMs.Load()) * time.Millisecond
	if pos < 0 || pos > dur {
		return &audio.SeekError{Position: pos, Length: dur}
	}
	c.enqueue(command{
		epoch: c.epoch.Load(),
		apply: func() {
			cur := c.sched.current
			if cur == nil {
				return
			}
			if err := cur.seek(pos); err != nil {
				c.logger.Warn("Seek failed", slog.Any("error", err))
			}
		},
	})
	return nil
}

// SetVolume sets the master gain. Per-channel crossfade gains are scaled
// multiplicatively by it, so fade ratios are preserved. Idempotent.
func (c *Controller) SetVolume(level float64) error {
	if level < 0 || level > 1 {
		return ErrVolumeRange
	}
	c.enqueue(command{
		epoch: c.epoch.Load(),
		apply: func() {
			c.mixer.SetMaster(level)
			c.pubVol.Store(math.Float64bits(level))
		},
	})
	return nil
}

// Stop ends the session: pending commands and channel activations are
// discarded, all channels close and the output device is torn down.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running && c.State() == StateStopped {
		return nil
	}

	c.epoch.Add(1)
	c.drainDiscard()

	if c.running {
		if err := c.device.Stop(); err != nil {
			c.logger.Warn("Device stop failed", slog.Any("error", err))
		}
		c.running = false
	}

	// The device no longer pulls, so engine state is safe to touch here
	c.sched.reset()
	c.queue = nil
	c.paused = false
	c.skipOnDeliver = false
	c.updateNextAvail()

	c.pubState.Store(int32(StateStopped))
	c.pubTrack.Store(nil)
	c.pubPosMs.Store(0)
	c.pubDurMs.Store(0)
	c.lastState = StateStopped
	c.lastTrackID = ""
	c.events.publish(Event{State: StateStopped, Volume: c.mixer.Master()})
	return nil
}

// Reconnect tears down and reopens the output device after a DeviceError,
// keeping the engine state intact.
func (c *Controller) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		c.logger.Warn("Device stop failed", slog.Any("error", err))
	}
	c.running = false
	return c.ensureSessionLocked()
}

// Close stops playback and releases the engine.
func (c *Controller) Close() error {
	err := c.Stop()
	close(c.prefetchCh)
	c.wg.Wait()
	c.events.close()
	return err
}

// ensureSessionLocked starts the device session if needed. mu held.
func (c *Controller) ensureSessionLocked() error {
	if c.running {
		return nil
	}
	bufFrames := c.rate.N(c.cfg.BufferSize)
	if err := c.device.Start(c.rate, bufFrames, &pump{c: c}); err != nil {
		return err
	}
	c.running = true
	return nil
}

// popNext removes and returns the queue head. Mixing goroutine only.
func (c *Controller) popNext() (Track, bool) {
	if len(c.queue) == 0 {
		return Track{}, false
	}
	track := c.queue[0]
	c.queue = c.queue[1:]
	c.updateNextAvail()
	return track, true
}

func (c *Controller) updateNextAvail() {
	n := len(c.queue)
	if c.sched.pending != nil || c.sched.awaiting {
		n++
	}
	c.nextAvail.Store(int32(n))
}

// drainDiscard empties the command queue, releasing carried resources.
func (c *Controller) drainDiscard() {
	for {
		select {
		case cmd := <-c.cmds:
			if cmd.discard != nil {
				cmd.discard()
			}
		default:
			return
		}
	}
}

// enqueue hands a command to the mixing goroutine without blocking.
func (c *Controller) enqueue(cmd command) {
	select {
	case c.cmds <- cmd:
	default:
		c.logger.Warn("Command queue full, dropping command")
		if cmd.discard != nil {
			cmd.discard()
		}
	}
}

// prefetchWorker opens upcoming sources off the mixing goroutine so the
// mixer never waits on disk.
func (c *Controller) prefetchWorker() {
	defer c.wg.Done()
	for job := range c.prefetchCh {
		if job.epoch != c.epoch.Load() {
			continue
		}
		src, err := c.open(job.track.Path)
		if err != nil {
			c.logger.Warn("Failed to open next track",
				slog.String("track", job.track.ID), slog.Any("error", err))
			c.events.publish(Event{
				State:   c.State(),
				TrackID: job.track.ID,
				Volume:  c.Volume(),
				Err:     err,
			})
			c.enqueue(command{epoch: job.epoch, apply: func() {
				c.sched.prefetchFailed()
				c.skipOnDeliver = false
				c.updateNextAvail()
			}})
			continue
		}
		track := job.track
		c.enqueue(command{
			epoch: job.epoch,
			apply: func() {
				if c.skipOnDeliver {
					c.skipOnDeliver = false
					c.sched.awaiting = false
					c.sched.skipTo(track, src)
				} else {
					c.sched.deliverPrefetch(track, src)
				}
				c.updateNextAvail()
			},
			discard: func() { src.Close() },
		})
	}
}

// pump is the root streamer the device pulls fixed-size frame blocks from.
type pump struct {
	c *Controller
}

func (p *pump) Stream(samples [][2]float64) (n int, ok bool) {
	p.c.streamBlock(samples)
	return len(samples), true
}

func (p *pump) Err() error {
	return nil
}

// streamBlock runs once per device callback: apply pending commands, mix
// one block (or silence while paused or empty) and publish state.
func (c *Controller) streamBlock(samples [][2]float64) {
	c.drainCommands()

	if c.paused || c.mixer.Active() == 0 {
		for i := range samples {
			samples[i][0] = 0
			samples[i][1] = 0
		}
	} else {
		removed := c.mixer.Mix(samples)
		c.sched.tick(removed)
	}

	c.updateNextAvail()
	c.publishSnapshot(len(samples))
}

// drainCommands applies all pending commands from the current epoch.
func (c *Controller) drainCommands() {
	for {
		select {
		case cmd := <-c.cmds:
			if cmd.epoch != c.epoch.Load() {
				if cmd.discard != nil {
					cmd.discard()
				}
				continue
			}
			cmd.apply()
		default:
			return
		}
	}
}

// publishSnapshot refreshes the published atomics and emits events: one on
// every state or track transition, plus a periodic position event while
// playback is active.
func (c *Controller) publishSnapshot(frames int) {
	st := c.sched.visibleState()
	if c.paused && st != StateStopped {
		st = StatePaused
	}

	var (
		track Track
		pos   time.Duration
		dur   time.Duration
	)
	if cur := c.sched.current; cur != nil {
		track = cur.track
		pos = cur.position()
		sr := cur.src.Format().SampleRate
		dur = sr.D(cur.src.Len())
	}

	c.pubState.Store(int32(st))
	if track.ID != "" {
		t := track
		c.pubTrack.Store(&t)
	} else {
		c.pubTrack.Store(nil)
	}
	c.pubPosMs.Store(pos.Milliseconds())
	c.pubDurMs.Store(dur.Milliseconds())

	changed := st != c.lastState || track.ID != c.lastTrackID
	c.frameAcc += frames
	periodic := st.IsActive() && st != StatePaused &&
		c.frameAcc >= c.rate.N(c.cfg.PositionInterval)

	if changed || periodic {
		c.events.publish(Event{
			State:    st,
			TrackID:  track.ID,
			Position: pos,
			Volume:   c.mixer.Master(),
		})
		c.frameAcc = 0
	}
	c.lastState = st
	c.lastTrackID = track.ID
}

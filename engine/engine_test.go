package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
)

// Shared test fixtures: an in-memory track source, an output device driven
// by the test instead of a speaker, and a map-backed resolver.

const testRate = 8000

// fakeSource produces a constant sample value for a fixed number of frames.
type fakeSource struct {
	length int
	pos    int
	val    float64
	rate   beep.SampleRate
	closed bool
}

func newFakeSource(d time.Duration, val float64) *fakeSource {
	rate := beep.SampleRate(testRate)
	return &fakeSource{length: rate.N(d), val: val, rate: rate}
}

func (s *fakeSource) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.length {
		return 0, false
	}
	n := min(len(samples), s.length-s.pos)
	for i := 0; i < n; i++ {
		samples[i][0] = s.val
		samples[i][1] = s.val
	}
	s.pos += n
	return n, true
}

func (s *fakeSource) Err() error     { return nil }
func (s *fakeSource) Len() int       { return s.length }
func (s *fakeSource) Position() int  { return s.pos }
func (s *fakeSource) Close() error   { s.closed = true; return nil }
func (s *fakeSource) Format() beep.Format {
	return beep.Format{SampleRate: s.rate, NumChannels: 2, Precision: 2}
}

func (s *fakeSource) Seek(p int) error {
	if p < 0 || p > s.length {
		return fmt.Errorf("seek %d out of range", p)
	}
	s.pos = p
	return nil
}

// fakeDevice records the root streamer so tests can pump frame blocks
// deterministically.
type fakeDevice struct {
	root   beep.Streamer
	starts int
	stops  int
}

func (d *fakeDevice) Start(sampleRate beep.SampleRate, bufferSize int, root beep.Streamer) error {
	d.root = root
	d.starts++
	return nil
}

func (d *fakeDevice) Stop() error {
	d.stops++
	return nil
}

// fakeResolver resolves track IDs from a map.
type fakeResolver struct {
	tracks map[string]Track
}

func (r *fakeResolver) Resolve(id string) (Track, error) {
	t, ok := r.tracks[id]
	if !ok {
		return Track{}, fmt.Errorf("unknown track %s", id)
	}
	return t, nil
}

// harness wires a controller to fake sources keyed by track path.
type harness struct {
	t       *testing.T
	ctrl    *Controller
	dev     *fakeDevice
	sources map[string]*fakeSource
	block   [][2]float64
	elapsed time.Duration
}

func newHarness(t *testing.T, cfg Config, durations map[string]time.Duration) *harness {
	t.Helper()
	cfg.SampleRate = testRate
	if cfg.PositionInterval == 0 {
		cfg.PositionInterval = 500 * time.Millisecond
	}

	resolver := &fakeResolver{tracks: map[string]Track{}}
	sources := map[string]*fakeSource{}
	for id, d := range durations {
		resolver.tracks[id] = Track{ID: id, Title: id, Path: id, Duration: d}
		sources[id] = newFakeSource(d, 0.5)
	}

	dev := &fakeDevice{}
	ctrl, err := NewController(cfg, resolver, dev)
	if err != nil {
		t.Fatal(err)
	}
	ctrl.open = func(path string) (trackSource, error) {
		src, ok := sources[path]
		if !ok {
			return nil, fmt.Errorf("no source for %s", path)
		}
		return src, nil
	}
	t.Cleanup(func() { ctrl.Close() })

	// 50ms blocks
	return &harness{
		t:       t,
		ctrl:    ctrl,
		dev:     dev,
		sources: sources,
		block:   make([][2]float64, testRate/20),
	}
}

// pump streams d worth of audio through the engine in device-size blocks,
// asserting the two-channel invariant after every block.
func (h *harness) pump(d time.Duration) {
	h.t.Helper()
	if h.dev.root == nil {
		h.t.Fatal("device not started")
	}
	frames := beep.SampleRate(testRate).N(d)
	for frames > 0 {
		n := min(frames, len(h.block))
		h.dev.root.Stream(h.block[:n])
		frames -= n
		if got := h.ctrl.mixer.Active(); got > maxChannels {
			h.t.Fatalf("%d active channels, invariant allows at most %d", got, maxChannels)
		}
	}
	h.elapsed += d
}

// pumpBlock streams a single block.
func (h *harness) pumpBlock() {
	h.t.Helper()
	h.pump(50 * time.Millisecond)
}

// pumpTo streams blocks up to the given absolute position in the session.
func (h *harness) pumpTo(pos time.Duration) {
	h.t.Helper()
	if pos < h.elapsed {
		h.t.Fatalf("already pumped %v, cannot rewind to %v", h.elapsed, pos)
	}
	h.pump(pos - h.elapsed)
}

// pumpUntil streams blocks until cond holds, giving the background worker
// time to deliver between blocks.
func (h *harness) pumpUntil(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.pumpBlock()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
}

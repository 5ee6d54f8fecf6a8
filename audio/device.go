package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Device is the output side of the playback engine. Start begins pulling
// fixed-size frame blocks from root at the device callback cadence; Stop
// tears the device down again.
type Device interface {
	Start(sampleRate beep.SampleRate, bufferSize int, root beep.Streamer) error
	Stop() error
}

// SpeakerDevice drives the process-wide speaker. The speaker is a global
// handle, so the device keeps an init-on-first-start, teardown-on-stop
// lifecycle around it instead of leaving that to callers.
type SpeakerDevice struct {
	mu   sync.Mutex
	open bool
	rate beep.SampleRate
}

// Start initializes the speaker if needed and attaches root to it.
func (d *SpeakerDevice) Start(sampleRate beep.SampleRate, bufferSize int, root beep.Streamer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open && d.rate == sampleRate {
		speaker.Clear()
		speaker.Play(root)
		return nil
	}
	if d.open {
		// Sample rate changed; the speaker must be reopened
		speaker.Close()
		d.open = false
	}

	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return &DeviceError{Err: err}
	}
	d.open = true
	d.rate = sampleRate

	speaker.Play(root)
	return nil
}

// Stop detaches all streamers and closes the speaker.
func (d *SpeakerDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	d.open = false
	return nil
}

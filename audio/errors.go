package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedFormat is returned when no decoder exists for a file extension.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError indicates an unreadable or corrupt audio asset.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SeekError indicates a seek target outside the track bounds.
type SeekError struct {
	Position time.Duration
	Length   time.Duration
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("seek position %s outside track bounds [0, %s]", e.Position, e.Length)
}

// DeviceError indicates the output device is unavailable or disconnected.
// It is fatal to the current playback session.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
)

// Supported reports whether the file extension has a decoder.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3, extWAV, extFLAC, extOGG, extOGA:
		return true
	}
	return false
}

// Source wraps one decodable audio asset, producing a lazy stream of PCM
// frames. It is finite and restartable via Seek.
type Source struct {
	path     string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
}

// Open decodes the audio file at path. Unsupported or corrupt files
// return a *DecodeError.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
	case extFLAC:
		streamer, format, err = flac.Decode(f)
	case extOGG, extOGA:
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, &DecodeError{Path: path, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		f.Close()
		return nil, &DecodeError{Path: path, Err: err}
	}

	return &Source{
		path:     path,
		file:     f,
		streamer: streamer,
		format:   format,
	}, nil
}

// Stream implements beep.Streamer.
func (s *Source) Stream(samples [][2]float64) (n int, ok bool) {
	return s.streamer.Stream(samples)
}

// Err implements beep.Streamer.
func (s *Source) Err() error {
	return s.streamer.Err()
}

// Len returns the total length in source-rate frames.
func (s *Source) Len() int {
	return s.streamer.Len()
}

// Position returns the number of source-rate frames consumed.
func (s *Source) Position() int {
	return s.streamer.Position()
}

// Seek repositions the cursor to the given source-rate frame.
// Out-of-range positions return a *SeekError.
func (s *Source) Seek(p int) error {
	if p < 0 || p > s.streamer.Len() {
		return &SeekError{
			Position: s.format.SampleRate.D(p),
			Length:   s.format.SampleRate.D(s.streamer.Len()),
		}
	}
	return s.streamer.Seek(p)
}

// Close releases the decoder and the underlying file handle.
func (s *Source) Close() error {
	err := s.streamer.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Format returns the decoded sample rate and channel count.
func (s *Source) Format() beep.Format {
	return s.format
}

// Duration returns the total track duration.
func (s *Source) Duration() time.Duration {
	return s.format.SampleRate.D(s.streamer.Len())
}

// Path returns the file reference this source was opened from.
func (s *Source) Path() string {
	return s.path
}

// Probe opens the file just long enough to read its format and duration.
func Probe(path string) (beep.Format, time.Duration, error) {
	src, err := Open(path)
	if err != nil {
		return beep.Format{}, 0, err
	}
	defer src.Close()
	return src.Format(), src.Duration(), nil
}

package library

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeWAV writes a silent 16-bit stereo PCM file and returns its path.
func writeWAV(t *testing.T, dir, name string, sampleRate, frames int) string {
	t.Helper()

	dataSize := frames * 4
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddAndGet(t *testing.T) {
	s := newTestStore(t)

	in := &Track{
		Title:      "Longing",
		Artist:     "Ambient Works",
		Path:       "/music/longing.mp3",
		Duration:   3*time.Minute + 12*time.Second,
		SampleRate: 44100,
		Channels:   2,
	}
	if err := s.Add(in); err != nil {
		t.Fatal(err)
	}
	if in.ID == "" {
		t.Fatal("Add should generate an ID")
	}

	got, err := s.Get(in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != in.Title || got.Artist != in.Artist || got.Path != in.Path {
		t.Errorf("got %+v, want fields of %+v", got, in)
	}
	if got.Duration != in.Duration {
		t.Errorf("duration = %v, want %v", got.Duration, in.Duration)
	}
	if got.SampleRate != 44100 || got.Channels != 2 {
		t.Errorf("format = %d/%d, want 44100/2", got.SampleRate, got.Channels)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Get missing = %v, want ErrTrackNotFound", err)
	}
}

func TestGetByPath(t *testing.T) {
	s := newTestStore(t)
	in := &Track{Title: "a", Path: "/music/a.mp3", Duration: time.Minute}
	if err := s.Add(in); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByPath("/music/a.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != in.ID {
		t.Errorf("got %s, want %s", got.ID, in.ID)
	}

	if _, err := s.GetByPath("/music/other.mp3"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("GetByPath missing = %v, want ErrTrackNotFound", err)
	}
}

func TestAddValidation(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name  string
		track Track
	}{
		{"missing path", Track{Title: "a", Duration: time.Minute}},
		{"zero duration", Track{Title: "a", Path: "/music/a.mp3"}},
		{"negative duration", Track{Title: "a", Path: "/music/a.mp3", Duration: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := tt.track
			if err := s.Add(&track); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestAddDuplicatePath(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(&Track{Title: "a", Path: "/music/a.mp3", Duration: time.Minute}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(&Track{Title: "b", Path: "/music/a.mp3", Duration: time.Minute}); err == nil {
		t.Error("expected an error for a duplicate path")
	}
}

func TestListAndRemove(t *testing.T) {
	s := newTestStore(t)
	a := &Track{Title: "a", Path: "/music/a.mp3", Duration: time.Minute}
	b := &Track{Title: "b", Path: "/music/b.mp3", Duration: time.Minute}
	for _, tr := range []*Track{a, b} {
		if err := s.Add(tr); err != nil {
			t.Fatal(err)
		}
	}

	tracks, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("listed %d tracks, want 2", len(tracks))
	}

	if err := s.Remove(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Get after remove = %v, want ErrTrackNotFound", err)
	}
	if err := s.Remove(a.ID); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("second Remove = %v, want ErrTrackNotFound", err)
	}

	tracks, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != b.ID {
		t.Errorf("remaining tracks = %v, want only %s", tracks, b.ID)
	}
}

func TestImportFile(t *testing.T) {
	s := newTestStore(t)
	path := writeWAV(t, t.TempDir(), "morning light.wav", 8000, 4000)

	got, err := s.ImportFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "morning light" {
		t.Errorf("title = %q, want %q", got.Title, "morning light")
	}
	if got.Duration != 500*time.Millisecond {
		t.Errorf("duration = %v, want 500ms", got.Duration)
	}
	if got.SampleRate != 8000 || got.Channels != 2 {
		t.Errorf("format = %d/%d, want 8000/2", got.SampleRate, got.Channels)
	}

	// Importing the same path again returns the existing entry
	again, err := s.ImportFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != got.ID {
		t.Errorf("re-import created a new entry %s, want %s", again.ID, got.ID)
	}
}

func TestImportDir(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	writeWAV(t, dir, "one.wav", 8000, 800)
	writeWAV(t, dir, "two.wav", 8000, 800)
	os.WriteFile(filepath.Join(dir, "cover.txt"), []byte("not audio"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("RIFFjunk"), 0o644)

	imported, err := s.ImportDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(imported) != 2 {
		t.Fatalf("imported %d tracks, want 2 (unreadable files skipped)", len(imported))
	}

	tracks, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Errorf("listed %d tracks, want 2", len(tracks))
	}
}

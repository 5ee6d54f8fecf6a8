// Package library implements the track library collaborator: a SQLite
// backed store the playback engine resolves track references from.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"segue/audio"
)

// ErrTrackNotFound is returned when a track ID has no library entry.
var ErrTrackNotFound = errors.New("track not found")

// Track is one library entry. Immutable once loaded: duration and format
// are probed at import time, not at playback time.
type Track struct {
	ID         string
	Title      string
	Artist     string
	Path       string
	Duration   time.Duration
	SampleRate int
	Channels   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the fields the engine depends on.
func (t *Track) Validate() error {
	if t.Path == "" {
		return fmt.Errorf("track %s: file path is required", t.ID)
	}
	if t.Duration <= 0 {
		return fmt.Errorf("track %s: duration must be positive", t.ID)
	}
	return nil
}

// Store provides track persistence and lookups.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const migration = `
CREATE TABLE IF NOT EXISTS tracks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	artist      TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL UNIQUE,
	duration_ms INTEGER NOT NULL,
	sample_rate INTEGER NOT NULL,
	channels    INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
`

// Open opens (or creates) the library database at path. ":memory:" gives
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, logger: slog.With("component", "library")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a track, generating an ID when none is set.
func (s *Store) Add(t *Track) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (id, title, artist, path, duration_ms, sample_rate, channels, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		t.ID,
		t.Title,
		t.Artist,
		t.Path,
		t.Duration.Milliseconds(),
		t.SampleRate,
		t.Channels,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID.
func (s *Store) Get(id string) (*Track, error) {
	query := `
		SELECT id, title, artist, path, duration_ms, sample_rate, channels, created_at, updated_at
		FROM tracks
		WHERE id = ?
	`
	return s.scanOne(s.db.QueryRow(query, id))
}

// GetByPath retrieves a track by its file reference.
func (s *Store) GetByPath(path string) (*Track, error) {
	query := `
		SELECT id, title, artist, path, duration_ms, sample_rate, channels, created_at, updated_at
		FROM tracks
		WHERE path = ?
	`
	return s.scanOne(s.db.QueryRow(query, path))
}

// List returns all tracks in import order.
func (s *Store) List() ([]Track, error) {
	query := `
		SELECT id, title, artist, path, duration_ms, sample_rate, channels, created_at, updated_at
		FROM tracks
		ORDER BY created_at, id
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows.Scan)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// Remove deletes a track entry. The audio file itself is untouched.
func (s *Store) Remove(id string) error {
	result, err := s.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTrackNotFound
	}
	return nil
}

// ImportFile probes an audio file and adds it to the library. Re-importing
// an already known path returns the existing entry.
func (s *Store) ImportFile(path string) (*Track, error) {
	if existing, err := s.GetByPath(path); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrTrackNotFound) {
		return nil, err
	}

	format, duration, err := audio.Probe(path)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t := &Track{
		Title:      title,
		Path:       path,
		Duration:   duration,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}
	if err := s.Add(t); err != nil {
		return nil, err
	}
	s.logger.Info("Imported track",
		slog.String("id", t.ID),
		slog.String("title", t.Title),
		slog.Duration("duration", t.Duration))
	return t, nil
}

func (s *Store) scanOne(row *sql.Row) (*Track, error) {
	t, err := scanTrack(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}
	return t, err
}

func scanTrack(scan func(dest ...any) error) (*Track, error) {
	var (
		t          Track
		durationMs int64
	)
	err := scan(
		&t.ID,
		&t.Title,
		&t.Artist,
		&t.Path,
		&durationMs,
		&t.SampleRate,
		&t.Channels,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Duration = time.Duration(durationMs) * time.Millisecond
	return &t, nil
}

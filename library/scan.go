package library

import (
	"io/fs"
	"log/slog"
	"path/filepath"

	"segue/audio"
)

// ImportDir walks dir and imports every decodable audio file. Files that
// fail to decode are logged and skipped rather than aborting the scan.
func (s *Store) ImportDir(dir string) ([]Track, error) {
	var imported []Track
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.Supported(path) {
			return nil
		}
		t, err := s.ImportFile(path)
		if err != nil {
			s.logger.Warn("Skipping file", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		imported = append(imported, *t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}

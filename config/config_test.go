package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Playback: PlaybackConfig{
			SampleRate:        44100,
			BufferSize:        100 * time.Millisecond,
			CrossfadeEnabled:  true,
			CrossfadeDuration: 3 * time.Second,
			FadeCurve:         "equalpower",
			DefaultVolume:     0.7,
			PositionInterval:  500 * time.Millisecond,
		},
		Library: LibraryConfig{Database: "segue.db"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "crossfade disabled with zero duration",
			mutate: func(c *Config) { c.Playback.CrossfadeEnabled = false; c.Playback.CrossfadeDuration = 0 },
		},
		{
			name:      "zero sample rate",
			mutate:    func(c *Config) { c.Playback.SampleRate = 0 },
			wantField: "playback.sample_rate",
		},
		{
			name:      "zero buffer size",
			mutate:    func(c *Config) { c.Playback.BufferSize = 0 },
			wantField: "playback.buffer_size",
		},
		{
			name:      "negative crossfade duration",
			mutate:    func(c *Config) { c.Playback.CrossfadeDuration = -time.Second },
			wantField: "playback.crossfade_duration",
		},
		{
			name:      "unknown fade curve",
			mutate:    func(c *Config) { c.Playback.FadeCurve = "exponential" },
			wantField: "playback.fade_curve",
		},
		{
			name:      "volume above one",
			mutate:    func(c *Config) { c.Playback.DefaultVolume = 1.5 },
			wantField: "playback.default_volume",
		},
		{
			name:      "negative volume",
			mutate:    func(c *Config) { c.Playback.DefaultVolume = -0.1 },
			wantField: "playback.default_volume",
		},
		{
			name:      "zero position interval",
			mutate:    func(c *Config) { c.Playback.PositionInterval = 0 },
			wantField: "playback.position_interval",
		},
		{
			name:      "missing database path",
			mutate:    func(c *Config) { c.Library.Database = "" },
			wantField: "library.database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("error field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "playback.sample_rate", Message: "sample rate must be positive"}
	want := "playback.sample_rate: sample rate must be positive"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

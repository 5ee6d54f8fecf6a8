package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Playback engine configuration
	Playback PlaybackConfig `mapstructure:"playback"`

	// Track library configuration
	Library LibraryConfig `mapstructure:"library"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// PlaybackConfig holds playback-engine configuration
type PlaybackConfig struct {
	SampleRate        int           `mapstructure:"sample_rate"`
	BufferSize        time.Duration `mapstructure:"buffer_size"`
	CrossfadeEnabled  bool          `mapstructure:"crossfade_enabled"`
	CrossfadeDuration time.Duration `mapstructure:"crossfade_duration"`
	FadeCurve         string        `mapstructure:"fade_curve"` // linear, equalpower or smoothstep
	DefaultVolume     float64       `mapstructure:"default_volume"`
	PositionInterval  time.Duration `mapstructure:"position_interval"`
}

// LibraryConfig holds track-library configuration
type LibraryConfig struct {
	Database string `mapstructure:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Defaults match the desktop app's shipped settings
	viper.SetDefault("playback.sample_rate", 44100)
	viper.SetDefault("playback.buffer_size", "100ms")
	viper.SetDefault("playback.crossfade_enabled", false)
	viper.SetDefault("playback.crossfade_duration", "3s")
	viper.SetDefault("playback.fade_curve", "equalpower")
	viper.SetDefault("playback.default_volume", 0.7)
	viper.SetDefault("playback.position_interval", "500ms")
	viper.SetDefault("library.database", "segue.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.segue")
	viper.AddConfigPath("/etc/segue")

	// Allow environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SEGUE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Playback.SampleRate <= 0 {
		return &ConfigError{Field: "playback.sample_rate", Message: "sample rate must be positive"}
	}
	if c.Playback.BufferSize <= 0 {
		return &ConfigError{Field: "playback.buffer_size", Message: "buffer size must be positive"}
	}
	if c.Playback.CrossfadeDuration < 0 {
		return &ConfigError{Field: "playback.crossfade_duration", Message: "crossfade duration cannot be negative"}
	}
	switch c.Playback.FadeCurve {
	case "linear", "equalpower", "smoothstep":
	default:
		return &ConfigError{Field: "playback.fade_curve", Message: "fade curve must be linear, equalpower or smoothstep"}
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		return &ConfigError{Field: "playback.default_volume", Message: "volume must be between 0 and 1"}
	}
	if c.Playback.PositionInterval <= 0 {
		return &ConfigError{Field: "playback.position_interval", Message: "position interval must be positive"}
	}
	if c.Library.Database == "" {
		return &ConfigError{Field: "library.database", Message: "library database path is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

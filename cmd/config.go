package cmd

import (
	"fmt"
	"log/slog"

	"segue/config"
	"segue/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating segue configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		fmt.Println("Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Playback:\n")
		fmt.Printf("    Sample rate: %d Hz\n", cfg.Playback.SampleRate)
		fmt.Printf("    Buffer size: %s\n", cfg.Playback.BufferSize)
		fmt.Printf("    Crossfade: %v (%s, %s curve)\n",
			cfg.Playback.CrossfadeEnabled, cfg.Playback.CrossfadeDuration, cfg.Playback.FadeCurve)
		fmt.Printf("    Default volume: %.2f\n", cfg.Playback.DefaultVolume)
		fmt.Printf("    Position interval: %s\n", cfg.Playback.PositionInterval)
		fmt.Printf("  Library:\n")
		fmt.Printf("    Database: %s\n", cfg.Library.Database)
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

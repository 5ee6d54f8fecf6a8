package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"segue/audio"
	"segue/config"
	"segue/engine"
	"segue/library"
	"segue/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "segue [track-id-or-file...]",
	Short: "A crossfading audio player",
	Long: `Segue plays local audio files and library tracks with Spotify-style
crossfading between tracks.

Arguments are either track IDs from the library (see "segue library") or
paths to audio files (mp3, wav, flac, ogg). The first argument starts
playing immediately; the rest are queued. Near the end of each track the
next one fades in while the current one fades out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlayer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("database", "segue.db", "library database path")

	// Local flags for the player command
	rootCmd.Flags().BoolP("crossfade", "x", false, "crossfade between tracks")
	rootCmd.Flags().Duration("crossfade-duration", 3*time.Second, "crossfade duration")
	rootCmd.Flags().String("fade-curve", "equalpower", "fade curve (linear, equalpower, smoothstep)")
	rootCmd.Flags().Float64("volume", 0.7, "playback volume (0..1)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("library.database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("playback.crossfade_enabled", rootCmd.Flags().Lookup("crossfade"))
	viper.BindPFlag("playback.crossfade_duration", rootCmd.Flags().Lookup("crossfade-duration"))
	viper.BindPFlag("playback.fade_curve", rootCmd.Flags().Lookup("fade-curve"))
	viper.BindPFlag("playback.default_volume", rootCmd.Flags().Lookup("volume"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runPlayer plays the given tracks with crossfade
func runPlayer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	store, err := library.Open(cfg.Library.Database)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	ctrl, err := engine.NewController(
		engineConfig(cfg.Playback),
		&trackResolver{store: store},
		&audio.SpeakerDevice{},
	)
	if err != nil {
		return fmt.Errorf("failed to build playback engine: %w", err)
	}
	defer ctrl.Close()

	sub := ctrl.Subscribe()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for ev := range sub.C {
			if ev.Err != nil {
				fmt.Printf("%-14s %s error: %v\n", ev.State, ev.TrackID, ev.Err)
				continue
			}
			fmt.Printf("%-14s %-36s %7.1fs vol=%.2f\n",
				ev.State, ev.TrackID, ev.Position.Seconds(), ev.Volume)
			if ev.State == engine.StateStopped {
				return
			}
		}
	}()

	if err := ctrl.Play(args[0]); err != nil {
		return fmt.Errorf("failed to play %s: %w", args[0], err)
	}
	for _, id := range args[1:] {
		if err := ctrl.Queue(id); err != nil {
			return fmt.Errorf("failed to queue %s: %w", id, err)
		}
	}

	// Wait until the queue runs out or the user interrupts
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, stopping playback...\n", sig)
		if err := ctrl.Stop(); err != nil {
			return fmt.Errorf("failed to stop playback: %w", err)
		}
	case <-finished:
	}

	return nil
}

// engineConfig maps the settings collaborator onto the engine's
// constructor-passed configuration.
func engineConfig(p config.PlaybackConfig) engine.Config {
	return engine.Config{
		SampleRate:        p.SampleRate,
		BufferSize:        p.BufferSize,
		CrossfadeEnabled:  p.CrossfadeEnabled,
		CrossfadeDuration: p.CrossfadeDuration,
		FadeCurve:         p.FadeCurve,
		DefaultVolume:     p.DefaultVolume,
		PositionInterval:  p.PositionInterval,
	}
}

// trackResolver resolves library track IDs, falling back to direct file
// paths so ad-hoc playback works without an import step.
type trackResolver struct {
	store *library.Store
}

func (r *trackResolver) Resolve(id string) (engine.Track, error) {
	t, err := r.store.Get(id)
	if err == nil {
		return engine.Track{ID: t.ID, Title: t.Title, Path: t.Path, Duration: t.Duration}, nil
	}
	if !errors.Is(err, library.ErrTrackNotFound) {
		return engine.Track{}, err
	}

	if _, statErr := os.Stat(id); statErr == nil && audio.Supported(id) {
		_, duration, probeErr := audio.Probe(id)
		if probeErr != nil {
			return engine.Track{}, probeErr
		}
		title := strings.TrimSuffix(filepath.Base(id), filepath.Ext(id))
		return engine.Track{ID: id, Title: title, Path: id, Duration: duration}, nil
	}

	return engine.Track{}, library.ErrTrackNotFound
}

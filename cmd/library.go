package cmd

import (
	"fmt"
	"os"
	"time"

	"segue/config"
	"segue/library"
	"segue/logger"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// libraryCmd represents the library command
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Track library management commands",
	Long:  "Commands for importing, listing and removing tracks in the segue library.",
}

// libraryImportCmd imports a file or directory into the library
var libraryImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import an audio file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}

		if info.IsDir() {
			tracks, err := store.ImportDir(args[0])
			if err != nil {
				return fmt.Errorf("failed to import directory: %w", err)
			}
			fmt.Printf("Imported %d tracks\n", len(tracks))
			return nil
		}

		track, err := store.ImportFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to import file: %w", err)
		}
		fmt.Printf("Imported %s (%s)\n", track.Title, track.ID)
		return nil
	},
}

// libraryListCmd lists all tracks in the library
var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tracks, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list tracks: %w", err)
		}
		if len(tracks) == 0 {
			fmt.Println("Library is empty")
			return nil
		}

		lines := lo.Map(tracks, func(t library.Track, _ int) string {
			return fmt.Sprintf("%s  %-40s %8s  %s",
				t.ID, t.Title, t.Duration.Round(time.Second), t.Path)
		})
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

// libraryRemoveCmd removes a track from the library
var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <track-id>",
	Short: "Remove a track from the library",
	Long:  "Remove a track entry from the library. The audio file itself is not deleted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Remove(args[0]); err != nil {
			return fmt.Errorf("failed to remove track: %w", err)
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

// openStore loads config, sets up logging and opens the library database
func openStore() (*library.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	store, err := library.Open(cfg.Library.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryImportCmd)
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryRemoveCmd)
}

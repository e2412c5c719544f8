package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "gpxplayer",
	Short: "Replay vessel GPS tracks on a shared timeline",
	Long: `gpxplayer loads GPX tracks of several vessels, puts them on one timeline
and replays them with a scrubbable playhead.

Commands:
  Tracks:
    import     Store GPX tracks under a session
    validate   Check a GPX file for strictly increasing timestamps
    cut        Keep a GPX file's points before or after an instant
    info       Show entities, spans and bounds of tracks

  Playback:
    play       Play tracks headless and print every frame
    serve      Play tracks and expose them over a websocket

Examples:
  gpxplayer import --session kiel-2024 boats/*.gpx
  gpxplayer play --session kiel-2024 --speed 60
  gpxplayer cut race.gpx --at 2024-06-15T14:00:00Z --keep start`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing "+configFileHint)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logLevel from the config file")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cutCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

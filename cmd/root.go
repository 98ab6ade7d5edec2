package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "staywake",
	Short: "Keep GNOME awake while media is playing",
	Long: `staywake watches an MPRIS media player on the session bus and disables
GNOME's automatic suspend while playback is active.

It runs as a background daemon that listens for playback status changes
and toggles the autosuspend timeouts in gsettings, restoring the original
values when playback pauses or stops.

It also provides a CLI command to query the current playback and suspend
state, useful for displaying in tmux status lines or other status bars.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

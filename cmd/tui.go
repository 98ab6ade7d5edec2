package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"staywake/internal/config"
	"staywake/internal/mpris"
	"staywake/internal/tui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal UI for playback and suspend state",
	Long: `Display a terminal-based user interface showing the watched player's
playback status and the current autosuspend settings with real-time updates.

The TUI includes:
- The player's bus name and playback state
- The AC and battery autosuspend timeouts from gsettings
- A feed of recent suspend policy changes

Playback can be controlled with space (play/pause), 'n' (next) and
'p' (previous). Press 'q' to quit.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	bus, err := mpris.ConnectSession()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	poll := func(ctx context.Context) (*tui.Snapshot, error) {
		info, err := collectStatus(ctx, bus, cfg.Player)
		if err != nil {
			return nil, err
		}
		return &tui.Snapshot{
			Player:         info.Player,
			Status:         mpris.ParseStatus(info.Status),
			ACTimeout:      info.ACTimeout,
			BatteryTimeout: info.BatteryTimeout,
			Inhibited:      info.Inhibited,
		}, nil
	}

	app := tui.New()
	app.SetController(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Run(ctx, poll); err != nil {
		return err
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"staywake/internal/journal"
)

var (
	historyLimit   int
	historyDataDir string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent autosuspend toggle events",
	Long: `Show recent entries from the event journal, newest first.

Each entry records a policy change the daemon made: inhibiting suspend
when playback started, or restoring the original timeouts when it
stopped. Requires the journal to be enabled in the daemon configuration.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show")
	historyCmd.Flags().StringVar(&historyDataDir, "data-dir", "", "Data directory for the event journal (default: ~/.local/share/staywake)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dataDir := historyDataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "staywake")
	}

	dbPath := filepath.Join(dataDir, "journal.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No journal found. Run the daemon with the journal enabled first.")
		return nil
	}

	jrnl, err := journal.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer jrnl.Close()

	entries, err := jrnl.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No events recorded yet.")
		return nil
	}

	for _, e := range entries {
		result := "ok"
		if !e.OK {
			result = "failed"
		}
		line := fmt.Sprintf("%s  %-8s  %-8s  %s",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Status, e.Action, result)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}

	return nil
}

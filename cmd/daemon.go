package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"staywake/internal/config"
	"staywake/internal/gsettings"
	"staywake/internal/journal"
	"staywake/internal/monitor"
	"staywake/internal/mpris"
	"staywake/internal/power"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the autosuspend monitor daemon",
	Long: `Run the monitor daemon that watches the configured MPRIS player and
toggles GNOME's automatic suspend settings based on playback state.

The daemon will:
- Find the player on the D-Bus session bus, retrying periodically if absent
- Listen for PlaybackStatus changes via PropertiesChanged signals
- Set the AC and battery autosuspend timeouts to 0 while playback is active
- Restore the original timeout values when playback pauses or stops
- Restore the original values on shutdown (SIGINT/SIGTERM)

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for the event journal (default: ~/.local/share/staywake)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(daemonLogFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Str("player", cfg.Player).
		Msg("Starting staywake daemon")

	// Open the event journal if enabled
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		dataDir := daemonDataDir
		if dataDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(homeDir, ".local", "share", "staywake")
		}

		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		jrnl, err = journal.Open(filepath.Join(dataDir, "journal.db"))
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}

		logger.Info().Str("data_dir", dataDir).Msg("Event journal enabled")
	}

	// Connect to the session bus
	bus, err := mpris.ConnectSession()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	settings := gsettings.New(power.Schema)
	toggle := power.NewToggle(settings, logger)

	monitorCfg := monitor.Config{
		Player:            cfg.Player,
		DiscoveryInterval: time.Duration(cfg.DiscoveryInterval) * time.Second,
		JournalMaxAge:     time.Duration(cfg.Journal.MaxAgeDays) * 24 * time.Hour,
	}

	m := monitor.New(monitorCfg, bus, toggle, jrnl, logger)

	// Run monitor (blocks until shutdown signal)
	if err := m.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	if err := m.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}

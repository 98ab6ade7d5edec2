package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Name of the MPRIS player to track, without the
	// org.mpris.MediaPlayer2. prefix (e.g. "vlc", "mpv")
	Player string

	// How often to look for the player while disconnected (in seconds)
	DiscoveryInterval int

	// Output format template for the status command
	// Default: "{{.Status}}"
	StatusFormat string

	// Fixed display width for status output (0 disables padding)
	StatusWidth int

	// Policy-event journal settings
	Journal JournalConfig
}

// JournalConfig holds journal specific configuration
type JournalConfig struct {
	Enabled    bool
	MaxAgeDays int
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("player", "vlc")
	v.SetDefault("discovery_interval", 10)
	v.SetDefault("status_format", "{{.Status}}")
	v.SetDefault("status_width", 0)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.max_age_days", 30)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("STAYWAKE")
	v.AutomaticEnv()

	cfg := &Config{
		Player:            v.GetString("player"),
		DiscoveryInterval: v.GetInt("discovery_interval"),
		StatusFormat:      v.GetString("status_format"),
		StatusWidth:       v.GetInt("status_width"),
		Journal: JournalConfig{
			Enabled:    v.GetBool("journal.enabled"),
			MaxAgeDays: v.GetInt("journal.max_age_days"),
		},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "staywake")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"staywake/internal/config"
	"staywake/internal/gsettings"
	"staywake/internal/mpris"
	"staywake/internal/power"
)

// statusInfo holds the fields available to the status output template.
type statusInfo struct {
	Player         string
	Status         string
	ACTimeout      string
	BatteryTimeout string
	Inhibited      bool
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display current playback and autosuspend state",
	Long: `Query the session bus and gsettings and display the current state.

The output format can be customized in ~/.config/staywake/config.yaml
using a Go template. Available fields: .Player, .Status, .ACTimeout,
.BatteryTimeout, .Inhibited

Exit codes:
  0 - Player found on the bus
  1 - Player not running`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	statusCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.StatusFormat = formatFlag
	}

	bus, err := mpris.ConnectSession()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	info, err := collectStatus(ctx, bus, cfg.Player)
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}

	// Player not running, exit with code 1
	if info.Player == "" {
		os.Exit(1)
		return nil
	}

	output, err := formatStatus(info, cfg.StatusFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.StatusWidth
	}
	if width > 0 {
		output = padToWidth(output, width)
	}

	fmt.Println(output)
	return nil
}

// collectStatus gathers playback and autosuspend state into one snapshot.
func collectStatus(ctx context.Context, bus mpris.Bus, player string) (*statusInfo, error) {
	info := &statusInfo{Status: mpris.StatusUnknown.String()}

	names, err := bus.ListNames()
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	prefix := mpris.ServiceName(player)
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			info.Player = name
			break
		}
	}

	if info.Player != "" {
		status, err := bus.PlaybackStatus(info.Player)
		if err == nil {
			info.Status = status.String()
		}
	}

	settings := gsettings.New(power.Schema)
	if ac, err := settings.Get(ctx, power.KeyACTimeout); err == nil {
		info.ACTimeout = ac
	}
	if battery, err := settings.Get(ctx, power.KeyBatteryTimeout); err == nil {
		info.BatteryTimeout = battery
	}
	info.Inhibited = info.ACTimeout == "0" && info.BatteryTimeout == "0"

	return info, nil
}

// formatStatus applies the template to the status snapshot
func formatStatus(info *statusInfo, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Ensure we're exactly at the target width (in case truncate was imprecise)
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			padding := strings.Repeat(" ", width-resultWidth)
			return result + padding
		} else if resultWidth > width {
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		padding := strings.Repeat(" ", width-currentWidth)
		return text + padding
	}

	return text
}

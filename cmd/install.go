package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"staywake/internal/monitor"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install staywake daemon as a systemd user service",
	Long: `Install staywake daemon as a systemd user service that runs automatically
on login.

This command will:
  - Generate a systemd user unit file for the staywake daemon
  - Install it to ~/.config/systemd/user/
  - Reload the systemd user manager
  - Enable and start the service

The daemon will run in the background and keep GNOME awake whenever the
configured player is playing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		unitContent, err := monitor.GenerateUnit(monitor.UnitConfig{
			BinaryPath: binaryPath,
		})
		if err != nil {
			return fmt.Errorf("failed to generate unit: %w", err)
		}

		unitPath, err := monitor.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		unitDir := filepath.Dir(unitPath)
		if err := os.MkdirAll(unitDir, 0755); err != nil {
			return fmt.Errorf("failed to create systemd user directory: %w", err)
		}

		// Check if unit already exists
		if _, err := os.Stat(unitPath); err == nil {
			fmt.Println("Service is already installed. Stopping it first...")
			if err := stopService(); err != nil {
				fmt.Printf("Warning: failed to stop existing service: %v\n", err)
			}
		}

		if err := os.WriteFile(unitPath, []byte(unitContent), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		if err := startService(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		fmt.Println("✓ Service enabled and started successfully")
		fmt.Println("\nThe staywake daemon is now running and will start automatically on login.")
		fmt.Println("\nYou can check the service status with:")
		fmt.Println("  systemctl --user status staywake")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  staywake uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// startService reloads the user manager and enables the service
func startService() error {
	reload := exec.Command("systemctl", "--user", "daemon-reload")
	if output, err := reload.CombinedOutput(); err != nil {
		if len(output) > 0 {
			return fmt.Errorf("systemctl daemon-reload failed: %s", string(output))
		}
		return fmt.Errorf("failed to run systemctl daemon-reload: %w", err)
	}

	enable := exec.Command("systemctl", "--user", "enable", "--now", "staywake.service")
	if output, err := enable.CombinedOutput(); err != nil {
		if len(output) > 0 {
			return fmt.Errorf("systemctl enable failed: %s", string(output))
		}
		return fmt.Errorf("failed to run systemctl enable: %w", err)
	}

	return nil
}

// stopService disables and stops the service
func stopService() error {
	disable := exec.Command("systemctl", "--user", "disable", "--now", "staywake.service")
	output, err := disable.CombinedOutput()
	if err != nil {
		// Disable may fail if the unit was never enabled, which is OK
		if len(output) > 0 {
			fmt.Printf("Warning: %s\n", string(output))
		}
	}

	return nil
}

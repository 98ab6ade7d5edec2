package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"staywake/internal/monitor"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall staywake daemon from systemd",
	Long: `Uninstall staywake daemon from systemd and stop it from running
automatically.

This command will:
  - Stop the running daemon (if any)
  - Disable the systemd user service
  - Remove the unit file from ~/.config/systemd/user/

After uninstalling, the daemon will no longer run automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unitPath, err := monitor.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Service is not installed (unit file not found)")
			return nil
		}

		fmt.Println("Stopping service...")
		if err := stopService(); err != nil {
			fmt.Printf("Warning: failed to stop service: %v\n", err)
			fmt.Println("Continuing with unit removal...")
		} else {
			fmt.Println("✓ Service stopped")
		}

		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		reload := exec.Command("systemctl", "--user", "daemon-reload")
		if output, err := reload.CombinedOutput(); err != nil && len(output) > 0 {
			fmt.Printf("Warning: %s\n", string(output))
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)
		fmt.Println("\nThe staywake daemon has been uninstalled successfully.")
		fmt.Println("It will no longer run automatically on login.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  staywake install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

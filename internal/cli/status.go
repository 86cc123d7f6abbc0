package cli

import (
	"fmt"
	"os"

	"github.com/linebridge/linebridge/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ linebridge Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 linebridge Status")
		fmt.Printf("Version: %s\n", version)

		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (environment variables only)")
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:  ? Unable to load:", err)
			return
		}
		if cfg.Line.AccessToken != "" {
			fmt.Println("LINE token:       ✓ Set")
		} else {
			fmt.Println("LINE token:       ✗ Not set")
		}
		if cfg.Line.ChannelSecret != "" {
			fmt.Println("Channel secret:   ✓ Set")
		} else {
			fmt.Println("Channel secret:   ✗ Not set (signature checks disabled)")
		}
		if cfg.DirectLine.TokenURL != "" {
			fmt.Println("Direct Line URL:  ✓ Set")
		} else {
			fmt.Println("Direct Line URL:  ✗ Not set")
		}
		if cfg.Store.Disabled {
			fmt.Println("Exchange log:     ✗ Disabled")
		} else {
			fmt.Println("Exchange log:     ✓ " + cfg.StorePath())
		}
	},
}

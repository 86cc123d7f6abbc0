package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/linebridge/linebridge/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"  _ _            _          _     _\n" +
		" | (_)_ __   ___| |__  _ __(_) __| | __ _  ___\n" +
		" | | | '_ \\ / _ \\ '_ \\| '__| |/ _` |/ _` |/ _ \\\n" +
		" | | | | | |  __/ |_) | |  | | (_| | (_| |  __/\n" +
		" |_|_|_| |_|\\___|_.__/|_|  |_|\\__,_|\\__, |\\___|\n" +
		"                                    |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "linebridge",
	Short: "linebridge - LINE to Copilot Direct Line relay",
	Long:  color.CyanString(logo) + "\nA gateway that relays LINE messages to a Copilot bot over Direct Line.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

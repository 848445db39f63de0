package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/therealkaiharper-wq/openclaw-mission-control/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  __  __ ___ ___ ___ ___ ___  _  _\n" +
		" |  \\/  |_ _/ __/ __|_ _/ _ \\| \\| |\n" +
		" | |\\/| || |\\__ \\__ \\| | (_) | .` |\n" +
		" |_|  |_|___|___/___/___\\___/|_|\\_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "missiond",
	Short: "Mission Control - OpenClaw agent task board",
	Long:  color.CyanString(logo) + "\nIngests OpenClaw agent lifecycle events and maintains the task board.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

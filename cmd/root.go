// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agenda-gen",
	Short: "A CLI tool to generate community meeting agendas from GitHub activity.",
	Long: `agenda-gen queries GitHub for recent pull-request, issue, and release
activity across the configured repositories and renders a ready-to-edit
markdown meeting agenda. Run it a few days before each bi-weekly meeting.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

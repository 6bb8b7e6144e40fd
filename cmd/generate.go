// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubestellar/agenda-gen/internal/config"
	"github.com/kubestellar/agenda-gen/internal/gateway"
	"github.com/kubestellar/agenda-gen/internal/render"
	"github.com/kubestellar/agenda-gen/internal/usecase"
)

const meetingDateLayout = "2006-01-02"

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generates the meeting agenda and prints it as markdown",
	Long: `Aggregates recent activity (merged PRs, review backlog, help-wanted
issues, discussion-worthy issues, releases) across the configured repositories
and renders the bi-weekly meeting agenda in markdown format.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		// Validate the meeting date before touching the network.
		meetingDateStr, _ := cmd.Flags().GetString("meeting-date")
		meetingDate, err := time.Parse(meetingDateLayout, meetingDateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --meeting-date format. Please use YYYY-MM-DD. Error: %v\n", err)
			os.Exit(1)
		}

		configPath, _ := cmd.Flags().GetString("config")
		cfg := config.Default()
		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
				os.Exit(1)
			}
		}

		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		if token == "" {
			fmt.Fprintln(os.Stderr, "Warning: no GitHub token provided; rate limits may apply.")
			fmt.Fprintln(os.Stderr, "Set the GITHUB_TOKEN env var or use the --token flag.")
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		aggregator := usecase.NewAggregator(githubGateway, cfg, logger)

		agenda, err := aggregator.Aggregate(ctx, meetingDate, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to aggregate activity: %v\n", err)
			os.Exit(1)
		}

		document, err := render.Markdown(agenda, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render agenda: %v\n", err)
			os.Exit(1)
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath != "" {
			if err := os.WriteFile(outputPath, []byte(document), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write agenda to %s: %v\n", outputPath, err)
				os.Exit(1)
			}
			fmt.Printf("Agenda written to %s\n", outputPath)
			return
		}
		fmt.Println(document)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("meeting-date", "", "Meeting date (YYYY-MM-DD, required)")
	generateCmd.MarkFlagRequired("meeting-date")
	generateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	generateCmd.Flags().StringP("config", "c", "", "Path to a YAML config file (default: built-in config)")
	generateCmd.Flags().String("token", "", "GitHub token (or set GITHUB_TOKEN env var)")
}

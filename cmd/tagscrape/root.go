package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tagscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tagscrape",
		Short: "Scrape headings, paragraphs, links and images from a web page",
		Long: `tagscrape fetches one web page politely and extracts the tags you ask for.

Each requested tag kind is previewed on the console and saved as a CSV and
a JSON file. Requests look like a desktop browser and wait before they are
sent. Runs can optionally be recorded in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calstats application
var rootCmd = &cobra.Command{
	Use:   "calstats",
	Short: "Calendar statistics for a Microsoft 365 mailbox",
	Long: `calstats reads one mailbox's calendar through Microsoft Graph and reports
how much time was spent per category or free/busy status.

It can run as:
  - An HTTP API with /profile, /calendar/view and /stats
  - An MCP (Model Context Protocol) server for AI assistants
  - A one-shot CLI (calstats stats)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calstats version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ragsync/internal/cli"
	"github.com/cloo-solutions/ragsync/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragsync",
		Short: "ragsync CLI - ask questions over your synced documents",
		Long: `ragsync CLI talks to a ragsync server.

Environment variables:
  RAGSYNC_API_KEY   API key for authentication
  RAGSYNC_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.SyncCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.ParseCmd())
	rootCmd.AddCommand(client.SessionsCmd())
	rootCmd.AddCommand(client.VectorsCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

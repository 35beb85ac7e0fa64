package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/sqlsherpa/internal/cli"
	"github.com/cloo-solutions/sqlsherpa/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sqlsherpa",
		Short: "SQLSherpa CLI - ask SQL questions from the terminal",
		Long: `SQLSherpa CLI talks to a running sqlsherpad server.

Environment variables:
  SQLSHERPA_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.BrandingCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

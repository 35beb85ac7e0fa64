package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/sqlsherpa/internal/cli"
	"github.com/cloo-solutions/sqlsherpa/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sqlsherpad",
		Short: "SQLSherpa daemon and corpus tools",
		Long: `SQLSherpa daemon for serving the chat API and managing the retrieval corpus.

Configuration is read from SQLSHERPA_* environment variables and .env.`,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.EmbedCmd())
	rootCmd.AddCommand(admin.SearchCmd())
	rootCmd.AddCommand(admin.StatusCmd())
	rootCmd.AddCommand(admin.UploadCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

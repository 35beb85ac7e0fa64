package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the retrieval context for a query",
		Long:  "Run the same vector search the chat endpoint uses and print the formatted context block",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("limit", "n", 0, "Number of chunks to retrieve (defaults to SQLSHERPA_TOP_K)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		rt.cfg.TopK = limit
	}

	out, err := rt.retrieval().Retrieve(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

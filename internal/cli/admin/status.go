package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show embedding progress for the index namespace",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().String("namespace", "", "Namespace to inspect (defaults to SQLSHERPA_NAMESPACE)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	namespace := rt.cfg.Namespace
	if ns, _ := cmd.Flags().GetString("namespace"); ns != "" {
		namespace = ns
	}

	stats, err := rt.chunks.Stats(ctx, rt.cfg.IndexName, namespace)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Index:     %s/%s\n", rt.cfg.IndexName, namespace)
	fmt.Fprintf(w, "Embedded:  %d\n", stats.Embedded)
	fmt.Fprintf(w, "Pending:   %d\n", stats.Pending)
	fmt.Fprintf(w, "Failed:    %d\n", stats.Failed)
	if !stats.LastUpdated.IsZero() {
		fmt.Fprintf(w, "Updated:   %s\n", stats.LastUpdated.Format(time.RFC3339))
	}
	return nil
}

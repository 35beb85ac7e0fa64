package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/sqlsherpa/internal/jobs"
	"github.com/spf13/cobra"
)

// EmbedCmd returns the embed command
func EmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute missing chunk embeddings",
		Long:  "Process pending chunks in batches until none are left, then exit",
		Args:  cobra.NoArgs,
		RunE:  runEmbed,
	}

	cmd.Flags().String("namespace", "", "Namespace to embed (defaults to SQLSHERPA_NAMESPACE)")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
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

	worker := jobs.NewEmbeddingWorker(rt.chunks, rt.embedder, rt.cfg.IndexName, namespace, rt.logger)
	n, err := drainEmbeddings(ctx, worker)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d chunks\n", n)
	return nil
}

type batchProcessor interface {
	ProcessBatch(ctx context.Context) (jobs.BatchResult, error)
}

// drainEmbeddings runs batches until nothing is left to claim and returns
// how many chunks were embedded. Every claim spends one of a chunk's
// attempts, and a batch that neither embeds nor records a failure stops
// the drain with an error instead of claiming the same work again.
func drainEmbeddings(ctx context.Context, worker batchProcessor) (int, error) {
	total := 0
	for {
		res, err := worker.ProcessBatch(ctx)
		total += res.Embedded
		if err != nil {
			return total, err
		}
		if res.Claimed == 0 {
			return total, nil
		}
		if !res.Progressed() {
			return total, fmt.Errorf("embedding stalled: %d claimed chunks could not be saved", res.Unsaved)
		}
	}
}

var _ batchProcessor = (*jobs.EmbeddingWorker)(nil)

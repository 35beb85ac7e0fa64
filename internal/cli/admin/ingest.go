package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/sqlsherpa/internal/jobs"
	"github.com/cloo-solutions/sqlsherpa/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file|s3://key|s3://prefix/>...",
		Short: "Load corpus records into the vector index",
		Long: `Load JSONL corpus records into the configured index namespace.

Each line is a JSON object with id, text, source_url and optional
pre_context, post_context, source_description, source_type, order,
dialect and topic fields. Records are re-upserted by id; embeddings are
computed afterwards unless --embed is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("namespace", "", "Namespace to load into (defaults to SQLSHERPA_NAMESPACE)")
	cmd.Flags().Bool("embed", false, "Compute embeddings for the loaded records before exiting")
	addMigrationFlags(cmd)

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	objects, err := rt.objectStore(ctx)
	if err != nil {
		return err
	}
	var opener service.ObjectOpener
	if objects != nil {
		opener = objects
	}

	svc := service.NewIngestService(rt.chunks, opener, rt.cfg.IndexName, namespace, rt.logger)

	var total service.IngestStats
	for _, location := range args {
		stats, err := svc.IngestLocation(ctx, location)
		total.Lines += stats.Lines
		total.Upserted += stats.Upserted
		total.Skipped += stats.Skipped
		if err != nil {
			return fmt.Errorf("ingest %s: %w", location, err)
		}
		rt.logger.Info("ingested",
			zap.String("location", location),
			zap.Int("upserted", stats.Upserted),
			zap.Int("skipped", stats.Skipped),
		)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d records into %s/%s (%d lines, %d skipped)\n",
		total.Upserted, rt.cfg.IndexName, namespace, total.Lines, total.Skipped)

	if embed, _ := cmd.Flags().GetBool("embed"); embed {
		worker := jobs.NewEmbeddingWorker(rt.chunks, rt.embedder, rt.cfg.IndexName, namespace, rt.logger)
		n, err := drainEmbeddings(ctx, worker)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d chunks\n", n)
	}

	return nil
}

package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// UploadCmd returns the upload command
func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file> [key]",
		Short: "Upload a corpus file to the S3 bucket",
		Long:  "Store a local JSONL corpus file in the configured bucket so it can be ingested with s3://key",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runUpload,
	}

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	objects, err := rt.objectStore(ctx)
	if err != nil {
		return err
	}
	if objects == nil {
		return errors.New("object storage not configured: SQLSHERPA_S3_ENDPOINT required")
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}

	path := args[0]
	key := filepath.Base(path)
	if len(args) == 2 {
		key = args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if err := objects.Put(ctx, key, f, "application/x-ndjson"); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to s3://%s\n", path, key)
	return nil
}

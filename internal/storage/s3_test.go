//go:build integration

package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cloo-solutions/sqlsherpa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_PutOpenList(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "corpus",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	body := `{"id":"a","text":"SELECT 1","source_url":"https://example.com"}` + "\n"
	require.NoError(t, client.Put(ctx, "sql/chunks.jsonl", strings.NewReader(body), "application/x-ndjson"))

	r, err := client.Open(ctx, "sql/chunks.jsonl")
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	keys, err := client.List(ctx, "sql/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sql/chunks.jsonl"}, keys)

	_, err = client.Open(ctx, "missing.jsonl")
	assert.Error(t, err)
}

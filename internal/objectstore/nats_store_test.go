// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/tortoise-client/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// startTestServer starts an in-memory NATS server with JetStream enabled.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsServer, natsConnection
}

func TestStore_UploadDownload(t *testing.T) {
	t.Parallel()

	_, natsConnection := startTestServer(t)
	ctx := context.Background()

	store, err := objectstore.New(ctx, natsConnection, "candidates")
	require.NoError(t, err)
	require.Equal(t, "candidates", store.Bucket())

	key := "run/run_0.wav"
	payload := []byte("RIFF fake candidate")

	require.NoError(t, store.Upload(ctx, key, payload))

	downloaded, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, payload, downloaded)

	replacement := []byte("RIFF newer candidate")
	require.NoError(t, store.Upload(ctx, key, replacement))

	downloaded, err = store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, replacement, downloaded)
}

func TestStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	_, natsConnection := startTestServer(t)
	ctx := context.Background()

	first, err := objectstore.New(ctx, natsConnection, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Upload(ctx, "key", []byte("value")))

	second, err := objectstore.New(ctx, natsConnection, "shared")
	require.NoError(t, err)

	data, err := second.Download(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), data)
}

func TestStore_Errors(t *testing.T) {
	t.Parallel()

	_, natsConnection := startTestServer(t)
	ctx := context.Background()

	store, err := objectstore.New(ctx, natsConnection, "errors")
	require.NoError(t, err)

	require.ErrorIs(t, store.Upload(ctx, "", []byte("x")), objectstore.ErrEmptyKey)

	_, err = store.Download(ctx, "")
	require.ErrorIs(t, err, objectstore.ErrEmptyKey)

	_, err = store.Download(ctx, "missing")
	require.Error(t, err)
}

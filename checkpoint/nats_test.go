package checkpoint

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddedJetStream starts an in-process server for the test and returns a
// JetStream context on it.
func embeddedJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()
	ns, err := StartEmbeddedNATS(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	return js
}

func TestNATSStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewNATSStore(ctx, embeddedJetStream(t), "TAXORANK_TEST")
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)

	_, err = store.Load(ctx, "nats://Taxonomy_missing/000001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(ctx, "nats://Taxonomy_missing")
	assert.ErrorIs(t, err, ErrBadLocation)
}

func TestNATSStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store, err := NewNATSStore(ctx, embeddedJetStream(t), "TAXORANK_RACE")
	require.NoError(t, err)
	snap := grownTaxonomy(t).Snapshot()

	const writers = 8
	locations := make(chan string, writers)
	errs := make(chan error, writers)
	for range writers {
		go func() {
			loc, err := store.Save(ctx, snap)
			errs <- err
			locations <- loc
		}()
	}

	seen := map[string]bool{}
	for range writers {
		require.NoError(t, <-errs)
		seen[<-locations] = true
	}
	assert.Len(t, seen, writers, "every save gets its own sequence number")

	latest, err := store.Latest(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "nats://"+formatKey(snap.ID, writers), latest)
}

func TestNATSStore_ReopenBucket(t *testing.T) {
	ctx := context.Background()
	js := embeddedJetStream(t)
	tx := grownTaxonomy(t)

	first, err := NewNATSStore(ctx, js, "TAXORANK_REOPEN")
	require.NoError(t, err)
	loc, err := Save(ctx, first, tx)
	require.NoError(t, err)

	second, err := NewNATSStore(ctx, js, "TAXORANK_REOPEN")
	require.NoError(t, err)
	restored, err := LoadTaxonomy(ctx, second, loc)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), restored.ID())

	next, err := Save(ctx, second, restored)
	require.NoError(t, err)
	assert.Equal(t, "nats://"+formatKey(tx.ID(), 2), next)
}

func TestOpenEmbeddedNATS(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Backend: BackendNATS, NATSEmbedded: true, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendNATS, store.Backend())

	loc, err := Save(ctx, store, grownTaxonomy(t))
	require.NoError(t, err)
	_, err = store.Load(ctx, loc)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

// TestNATSStore_External runs the same checks against a running server:
// NATS_URL=nats://localhost:4222 go test ./checkpoint/...
func TestNATSStore_External(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	ctx := context.Background()
	bucket := "TAXORANK_TEST_" + uuid.NewString()[:8]
	store, err := ConnectNATS(ctx, url, bucket)
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
}

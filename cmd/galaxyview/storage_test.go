package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/galaxycore/galaxyview/internal/archive"
	"github.com/galaxycore/galaxyview/internal/channel"
	"github.com/galaxycore/galaxyview/internal/snapshot"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colony(turn int) *core.Snapshot {
	return &core.Snapshot{
		Turn:     turn,
		ViewerID: "p1",
		World:    core.World{Width: 100, Height: 100},
		Players:  []core.Player{{ID: "p1", Name: "Ada"}},
		Bodies:   []core.Body{{ID: "sol", Name: "Sol", OwnerID: "p1", State: core.BodyColonized}},
	}
}

func TestArchiveWriter_SavesForwardedSnapshots(t *testing.T) {
	Logger = slog.New(slog.DiscardHandler)
	store := archive.NewMemory(5)
	pending := channel.NewLatest[*core.Snapshot]()
	forward := forwardSnapshots(pending)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runArchiveWriter(ctx, store, pending)
		close(done)
	}()

	forward(nil)
	forward(core.NewIndex(colony(7)))

	assert.Eventually(t, func() bool {
		snap, err := store.Latest(context.Background(), "p1")
		return err == nil && snap.Turn == 7
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("archive writer did not stop after cancel")
	}
}

func TestSeedFromArchive(t *testing.T) {
	Logger = slog.New(slog.DiscardHandler)
	cache, err := snapshot.New(nil, Logger)
	require.NoError(t, err)
	snapshotCache = cache
	t.Cleanup(func() { snapshotCache = nil })

	store := archive.NewMemory(5)
	require.NoError(t, store.Save(context.Background(), colony(9)))

	require.NoError(t, seedFromArchive(context.Background(), store, ""))
	require.NoError(t, seedFromArchive(context.Background(), store, "p2"))
	assert.Nil(t, cache.Current())

	require.NoError(t, seedFromArchive(context.Background(), store, "p1"))
	require.NotNil(t, cache.Current())
	assert.Equal(t, 9, cache.Current().Turn())
	assert.True(t, cache.Status().Stale)
}

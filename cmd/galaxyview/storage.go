package main

import (
	"context"
	"errors"
	"time"

	"github.com/galaxycore/galaxyview/internal/archive"
	"github.com/galaxycore/galaxyview/internal/channel"
	"github.com/galaxycore/galaxyview/internal/config"
	"github.com/galaxycore/galaxyview/pkg/core"
)

const archiveSaveTimeout = 10 * time.Second

// initArchive opens the snapshot archive, seeds the cache with the newest
// stored snapshot and saves every refresh from then on.
func initArchive(ctx context.Context) error {
	cfg := config.GetArchiveConfig()
	if !cfg.Enabled {
		Logger.Debug("Snapshot archive disabled")
		return nil
	}

	store, err := archive.New(cfg, SlogManager.Zerolog("archive"))
	if err != nil {
		return err
	}
	archiveStore = store
	Logger.Info("Snapshot archive initialized", "type", cfg.Type, "keep", cfg.Keep)

	if err := seedFromArchive(ctx, store, playerID); err != nil {
		Logger.Warn("Failed to seed from archive", "error", err)
	}

	// saves run one at a time; a newer snapshot replaces one still waiting
	pending := channel.NewLatest[*core.Snapshot]()
	snapshotCache.Subscribe(forwardSnapshots(pending))
	go func() {
		runArchiveWriter(ctx, store, pending)
		if n := pending.Replaced(); n > 0 {
			Logger.Debug("Archive skipped superseded snapshots", "count", n)
		}
	}()
	return nil
}

func forwardSnapshots(out channel.Sender[*core.Snapshot]) func(*core.Index) {
	return func(ix *core.Index) {
		if ix != nil {
			out.Send(ix.Snapshot())
		}
	}
}

// runArchiveWriter saves snapshots from pending until ctx is done.
func runArchiveWriter(ctx context.Context, store archive.Store, pending channel.Receiver[*core.Snapshot]) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-pending.Receive():
			saveSnapshot(store, snap)
		}
	}
}

func seedFromArchive(ctx context.Context, store archive.Store, viewer core.PlayerID) error {
	if viewer == "" {
		Logger.Debug("No player id configured, skipping archive seed")
		return nil
	}
	snap, err := store.Latest(ctx, viewer)
	if errors.Is(err, archive.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := snapshotCache.Seed(snap); err != nil {
		return err
	}
	Logger.Info("Seeded from archive", "turn", snap.Turn, "fetchedAt", snap.FetchedAt)
	return nil
}

func saveSnapshot(store archive.Store, snap *core.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
	defer cancel()
	if err := store.Save(ctx, snap); err != nil {
		Logger.Error("Failed to archive snapshot", "error", err, "turn", snap.Turn)
	}
}

// Package archive keeps the last few snapshots on disk so a restarted client
// can show the galaxy, flagged stale, before the backend answers.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/galaxycore/galaxyview/internal/config"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Latest when nothing was archived for a viewer.
var ErrNotFound = errors.New("no archived snapshot")

// Store is the interface all archive backends satisfy.
type Store interface {
	// Save archives snap. A snapshot identical to the viewer's latest one,
	// apart from its fetch time, is not stored again.
	Save(ctx context.Context, snap *core.Snapshot) error
	// Latest returns the most recently saved snapshot for viewer.
	Latest(ctx context.Context, viewer core.PlayerID) (*core.Snapshot, error)
	// List returns the archived entries for viewer, newest first.
	List(ctx context.Context, viewer core.PlayerID) ([]Entry, error)
	Close() error
}

// Entry describes one archived snapshot without decoding it.
type Entry struct {
	Turn      int       `json:"turn"`
	Digest    string    `json:"digest"`
	FetchedAt time.Time `json:"fetchedAt"`
	Size      int       `json:"size"`
	Summary   Summary   `json:"summary"`
}

// Summary counts what a snapshot holds.
type Summary struct {
	Bodies   int `json:"bodies"`
	Colonies int `json:"colonies"`
	Fleets   int `json:"fleets"`
	Players  int `json:"players"`
}

func summarize(snap *core.Snapshot) Summary {
	s := Summary{
		Bodies:  len(snap.Bodies),
		Fleets:  len(snap.Fleets),
		Players: len(snap.Players),
	}
	for _, b := range snap.Bodies {
		if b.OwnerID == snap.ViewerID && b.State == core.BodyColonized {
			s.Colonies++
		}
	}
	return s
}

// DefaultKeep is how many snapshots per viewer are retained when unset.
const DefaultKeep = 5

// New creates an archive backend based on configuration.
func New(cfg config.ArchiveConfig, log zerolog.Logger) (Store, error) {
	keep := cfg.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemory(keep), nil
	case "sqlite":
		db, err := openSqlite(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		return newGormStore(db, keep, log)
	case "postgres":
		db, err := openPostgres(cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		return newGormStore(db, keep, log)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

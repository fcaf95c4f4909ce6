// Package snapshot holds the last successfully fetched game state.
//
// The cache swaps a whole indexed snapshot in one atomic store, so readers see
// either the previous state or the new one and never a mix. A failed refresh
// keeps the previous state and marks it stale.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/galaxycore/galaxyview/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// ErrNoSnapshot is returned by accessors before the first successful refresh.
var ErrNoSnapshot = errors.New("no snapshot loaded")

// Source is the backend collaborator the cache reads from.
type Source interface {
	FetchSnapshot(ctx context.Context) (*core.Snapshot, error)
	FetchEconomy(ctx context.Context) (core.Economy, error)
	FetchTech(ctx context.Context) (core.TechState, error)
}

// Status describes the freshness of the cached state.
type Status struct {
	Loaded      bool
	Stale       bool
	Turn        int
	LastError   error
	LastAttempt time.Time
	LastSuccess time.Time
}

// Listener is called after each successful swap with the new index.
type Listener func(ix *core.Index)

// Cache is the atomically replaced snapshot root.
type Cache struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	refreshMu sync.Mutex
	current   atomic.Pointer[core.Index]

	statusMu sync.RWMutex
	status   Status

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	refreshes metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates an empty cache reading from source.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(source Source, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		source:    source,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Cache) initMetrics() error {
	m := meter()
	var err error

	c.refreshes, err = m.Int64Counter("snapshot.refresh.count",
		metric.WithDescription("Snapshot refresh attempts"),
	)
	if err != nil {
		return err
	}

	c.failures, err = m.Int64Counter("snapshot.refresh.failures",
		metric.WithDescription("Snapshot refreshes that kept the previous state"),
	)
	if err != nil {
		return err
	}

	c.duration, err = m.Float64Histogram("snapshot.refresh.duration",
		metric.WithDescription("Snapshot refresh latency"),
		metric.WithUnit("s"),
	)
	return err
}

// Refresh fetches snapshot, economy and tech state concurrently, validates the
// result and swaps it in. Concurrent calls are serialized. On failure the
// previous snapshot stays current and Status reports it as stale.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	started := c.now()
	c.refreshes.Add(ctx, 1)

	snap, err := c.fetch(ctx)
	c.duration.Record(ctx, c.now().Sub(started).Seconds(),
		metric.WithAttributes(attribute.Bool("ok", err == nil)))
	if err != nil {
		c.failures.Add(ctx, 1)
		c.markStale(started, err)
		c.logger.Warn("snapshot refresh failed, keeping previous state", "error", err)
		return err
	}

	snap.FetchedAt = started
	ix := core.NewIndex(snap)
	c.current.Store(ix)

	c.statusMu.Lock()
	c.status = Status{
		Loaded:      true,
		Turn:        snap.Turn,
		LastAttempt: started,
		LastSuccess: started,
	}
	c.statusMu.Unlock()

	c.logger.Debug("snapshot refreshed", "turn", snap.Turn, "bodies", len(snap.Bodies), "fleets", len(snap.Fleets))
	c.notify(ix)
	return nil
}

func (c *Cache) fetch(ctx context.Context) (*core.Snapshot, error) {
	var (
		snap *core.Snapshot
		econ core.Economy
		tech core.TechState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.source.FetchSnapshot(gctx)
		if err != nil {
			return fmt.Errorf("fetch snapshot: %w", err)
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		e, err := c.source.FetchEconomy(gctx)
		if err != nil {
			return fmt.Errorf("fetch economy: %w", err)
		}
		econ = e
		return nil
	})
	g.Go(func() error {
		t, err := c.source.FetchTech(gctx)
		if err != nil {
			return fmt.Errorf("fetch tech: %w", err)
		}
		tech = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("fetch snapshot: %w", ErrNoSnapshot)
	}

	merged := *snap
	merged.Economy = econ
	merged.Tech = tech
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent snapshot: %w", err)
	}
	return &merged, nil
}

func (c *Cache) markStale(at time.Time, err error) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.status.Stale = true
	c.status.LastError = err
	c.status.LastAttempt = at
}

// Seed installs a snapshot loaded from somewhere other than the source, such
// as a local archive. It is flagged stale until the next successful Refresh.
func (c *Cache) Seed(snap *core.Snapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("inconsistent snapshot: %w", err)
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.current.Load() != nil {
		return nil
	}

	ix := core.NewIndex(snap)
	c.current.Store(ix)
	c.statusMu.Lock()
	c.status = Status{Loaded: true, Stale: true, Turn: snap.Turn, LastSuccess: snap.FetchedAt}
	c.statusMu.Unlock()
	c.notify(ix)
	return nil
}

// Current returns the latest index, or nil before anything was loaded.
func (c *Cache) Current() *core.Index {
	return c.current.Load()
}

// Status returns the freshness of the current state.
func (c *Cache) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// BodyByID looks up a body in the current snapshot.
func (c *Cache) BodyByID(id core.BodyID) (core.Body, bool) {
	ix := c.Current()
	if ix == nil {
		return core.Body{}, false
	}
	return ix.Body(id)
}

// FleetsAt returns the fleets stationed at body in the current snapshot.
func (c *Cache) FleetsAt(body core.BodyID) []core.Fleet {
	ix := c.Current()
	if ix == nil {
		return nil
	}
	return ix.FleetsAt(body)
}

// FleetsOwnedBy returns the player's fleets in the current snapshot.
func (c *Cache) FleetsOwnedBy(player core.PlayerID) []core.Fleet {
	ix := c.Current()
	if ix == nil {
		return nil
	}
	return ix.FleetsOwnedBy(player)
}

// NeutralColor is used for unowned bodies and unknown players.
const NeutralColor = "#9a9a9a"

// ColorOf returns the player's color, or NeutralColor.
func (c *Cache) ColorOf(player core.PlayerID) string {
	ix := c.Current()
	if ix == nil {
		return NeutralColor
	}
	return ix.ColorOf(player, NeutralColor)
}

// Subscribe registers fn to run after every swap. The returned func removes it.
func (c *Cache) Subscribe(fn Listener) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Cache) notify(ix *core.Index) {
	c.listenersMu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ix)
	}
}

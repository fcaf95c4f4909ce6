package archive

import (
	"context"
	"sync"

	"github.com/galaxycore/galaxyview/pkg/core"
)

type memoryRecord struct {
	entry   Entry
	payload []byte
}

// Memory keeps archived snapshots in process. Nothing survives a restart;
// it backs tests and clients that run without a disk.
type Memory struct {
	keep int

	mu      sync.RWMutex
	records map[core.PlayerID][]memoryRecord // newest first
}

// NewMemory creates an in-process archive retaining keep snapshots per viewer.
func NewMemory(keep int) *Memory {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Memory{keep: keep, records: make(map[core.PlayerID][]memoryRecord)}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, snap *core.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.records[snap.ViewerID]
	if len(list) > 0 && list[0].entry.Digest == enc.digest {
		return nil
	}
	rec := memoryRecord{
		entry: Entry{
			Turn:      snap.Turn,
			Digest:    enc.digest,
			FetchedAt: enc.fetchedAt,
			Size:      len(enc.payload),
			Summary:   summarize(snap),
		},
		payload: enc.payload,
	}
	list = append([]memoryRecord{rec}, list...)
	if len(list) > m.keep {
		list = list[:m.keep]
	}
	m.records[snap.ViewerID] = list
	return nil
}

// Latest implements Store.
func (m *Memory) Latest(_ context.Context, viewer core.PlayerID) (*core.Snapshot, error) {
	m.mu.RLock()
	list := m.records[viewer]
	m.mu.RUnlock()

	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return decode(list[0].payload, list[0].entry.FetchedAt)
}

// List implements Store.
func (m *Memory) List(_ context.Context, viewer core.PlayerID) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.records[viewer]))
	for _, r := range m.records[viewer] {
		out = append(out, r.entry)
	}
	return out, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

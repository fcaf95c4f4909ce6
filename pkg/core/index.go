package core

import "sort"

// Index is a read-only lookup view over a Snapshot. It is built once per
// snapshot and never mutated, so it may be shared between goroutines.
type Index struct {
	snap      *Snapshot
	bodies    map[BodyID]int
	fleets    map[FleetID]int
	players   map[PlayerID]int
	stationed map[BodyID][]int
	owned     map[PlayerID][]int
}

// NewIndex builds the lookup tables for s. A nil snapshot yields an empty index.
func NewIndex(s *Snapshot) *Index {
	if s == nil {
		s = &Snapshot{}
	}
	ix := &Index{
		snap:      s,
		bodies:    make(map[BodyID]int, len(s.Bodies)),
		fleets:    make(map[FleetID]int, len(s.Fleets)),
		players:   make(map[PlayerID]int, len(s.Players)),
		stationed: make(map[BodyID][]int),
		owned:     make(map[PlayerID][]int),
	}
	for i, b := range s.Bodies {
		ix.bodies[b.ID] = i
	}
	for i, p := range s.Players {
		ix.players[p.ID] = i
	}
	for i, f := range s.Fleets {
		ix.fleets[f.ID] = i
		ix.owned[f.OwnerID] = append(ix.owned[f.OwnerID], i)
		if f.Transit == nil && f.StationedAt != "" {
			ix.stationed[f.StationedAt] = append(ix.stationed[f.StationedAt], i)
		}
	}
	return ix
}

// Snapshot returns the underlying snapshot.
func (ix *Index) Snapshot() *Snapshot { return ix.snap }

// Turn returns the snapshot turn.
func (ix *Index) Turn() int { return ix.snap.Turn }

// Viewer returns the player the snapshot was fetched for.
func (ix *Index) Viewer() PlayerID { return ix.snap.ViewerID }

// Body returns the body with id, redacted for the viewer.
func (ix *Index) Body(id BodyID) (Body, bool) {
	i, ok := ix.bodies[id]
	if !ok {
		return Body{}, false
	}
	return ix.snap.Bodies[i].Redacted(), true
}

// Fleet returns the fleet with id.
func (ix *Index) Fleet(id FleetID) (Fleet, bool) {
	i, ok := ix.fleets[id]
	if !ok {
		return Fleet{}, false
	}
	return ix.snap.Fleets[i], true
}

// Player returns the player with id.
func (ix *Index) Player(id PlayerID) (Player, bool) {
	i, ok := ix.players[id]
	if !ok {
		return Player{}, false
	}
	return ix.snap.Players[i], true
}

// FleetsAt returns the non-disbanded fleets stationed at body, ordered by id.
func (ix *Index) FleetsAt(body BodyID) []Fleet {
	return ix.collect(ix.stationed[body])
}

// FleetsOwnedBy returns the non-disbanded fleets owned by player, ordered by id.
func (ix *Index) FleetsOwnedBy(player PlayerID) []Fleet {
	return ix.collect(ix.owned[player])
}

// ColorOf returns the player's color, or fallback for unknown or empty ids.
func (ix *Index) ColorOf(player PlayerID, fallback string) string {
	if p, ok := ix.Player(player); ok && p.Color != "" {
		return p.Color
	}
	return fallback
}

// ShipsAt sums the ships of the fleets owner has stationed at body.
func (ix *Index) ShipsAt(body BodyID, owner PlayerID) map[ShipClass]int {
	out := make(map[ShipClass]int)
	for _, f := range ix.FleetsAt(body) {
		if f.OwnerID != owner {
			continue
		}
		for class, n := range f.Ships {
			if n > 0 {
				out[class] += n
			}
		}
	}
	return out
}

func (ix *Index) collect(idx []int) []Fleet {
	out := make([]Fleet, 0, len(idx))
	for _, i := range idx {
		if f := ix.snap.Fleets[i]; !f.Disbanded() {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

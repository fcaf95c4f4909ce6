// pkg/core/types.go
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingField is returned when a command or entity lacks a required field.
var ErrMissingField = errors.New("missing required field")

// ErrOutOfRange is returned when a percentage lies outside [0, 100].
var ErrOutOfRange = errors.New("value out of range")

// BodyID identifies a celestial body.
type BodyID string

// FleetID identifies a fleet.
type FleetID string

// PlayerID identifies a player.
type PlayerID string

// ShipClass names a ship hull class (e.g. "fighter", "frigate").
type ShipClass string

// Position2D is a point in logical world space.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// World is the fixed logical extent of the galaxy.
type World struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside the world rectangle.
func (w World) Contains(p Position2D) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= w.Width && p.Y <= w.Height
}

// BodyState is the exploration state of a body as seen by the viewer.
type BodyState string

const (
	BodyUnexplored BodyState = "unexplored"
	BodyExplored   BodyState = "explored"
	BodyColonized  BodyState = "colonized"
)

// BodyAttributes only affect which indicators are drawn.
type BodyAttributes struct {
	Temperature  float64 `json:"temperature"`
	Habitability float64 `json:"habitability"`
	TextureClass string  `json:"textureClass"`
}

// Body is a colonizable location in the galaxy. Satellites are drawn on rings
// around their parent.
type Body struct {
	ID         BodyID         `json:"id"`
	Name       string         `json:"name"`
	Position   Position2D     `json:"position"`
	OwnerID    PlayerID       `json:"ownerId,omitempty"`
	State      BodyState      `json:"state"`
	Attributes BodyAttributes `json:"attributes"`
	Population int            `json:"population,omitempty"`
	Defense    int            `json:"defense,omitempty"`
	Satellites []BodyID       `json:"satellites,omitempty"`
	// Budget is the colony's economy split, present only on the viewer's colonies.
	Budget map[string]int `json:"budget,omitempty"`
}

// Owned reports whether the body has an owner.
func (b Body) Owned() bool {
	return b.OwnerID != ""
}

// Redacted returns a copy safe to expose to the viewer. Unexplored bodies carry
// no ownership, population or budget data.
func (b Body) Redacted() Body {
	if b.State != BodyUnexplored {
		return b
	}
	b.OwnerID = ""
	b.Population = 0
	b.Defense = 0
	b.Budget = nil
	return b
}

// Transit describes a fleet moving between two bodies.
type Transit struct {
	Origin        BodyID `json:"origin"`
	Destination   BodyID `json:"destination"`
	DepartureTurn int    `json:"departureTurn"`
	ArrivalTurn   int    `json:"arrivalTurn"`
}

// FleetStats are computed server-side and read-only on the client.
type FleetStats struct {
	Speed   float64 `json:"speed"`
	Range   float64 `json:"range"`
	Weapons int     `json:"weapons"`
	Shields int     `json:"shields"`
}

// Fleet is an owned group of ships, either stationed at a body or in transit.
type Fleet struct {
	ID          FleetID           `json:"id"`
	Name        string            `json:"name"`
	OwnerID     PlayerID          `json:"ownerId"`
	StationedAt BodyID            `json:"stationedAt,omitempty"`
	Transit     *Transit          `json:"transit,omitempty"`
	Ships       map[ShipClass]int `json:"ships"`
	Stats       FleetStats        `json:"stats"`
}

// ShipCount is the total number of ships across all classes.
func (f Fleet) ShipCount() int {
	n := 0
	for _, c := range f.Ships {
		if c > 0 {
			n += c
		}
	}
	return n
}

// Disbanded reports whether the fleet has no ships left.
func (f Fleet) Disbanded() bool {
	return f.ShipCount() == 0
}

// InTransit reports whether the fleet is moving.
func (f Fleet) InTransit() bool {
	return f.Transit != nil
}

// Location returns the body the fleet is bound to: its station, or its transit origin.
func (f Fleet) Location() BodyID {
	if f.Transit != nil {
		return f.Transit.Origin
	}
	return f.StationedAt
}

// Validate checks the stationed/in-transit exclusivity.
func (f Fleet) Validate() error {
	switch {
	case f.ID == "":
		return fmt.Errorf("fleet id: %w", ErrMissingField)
	case f.StationedAt != "" && f.Transit != nil:
		return fmt.Errorf("fleet %s is both stationed and in transit", f.ID)
	case f.StationedAt == "" && f.Transit == nil:
		return fmt.Errorf("fleet %s has no location", f.ID)
	}
	return nil
}

// Player is a participant in the game.
type Player struct {
	ID    PlayerID `json:"id"`
	Name  string   `json:"name"`
	Color string   `json:"color"` // #rrggbb
}

// Economy is the viewer's economic state.
type Economy struct {
	Money  int `json:"money"`
	Metal  int `json:"metal"`
	Income int `json:"income"`
	Debt   int `json:"debt"`
}

// TechDomain is one research domain.
type TechDomain struct {
	Key      string  `json:"key"`
	Level    int     `json:"level"`
	Progress float64 `json:"progress"`
}

// TechState is the viewer's technology state and research budget.
type TechState struct {
	Domains  []TechDomain   `json:"domains"`
	Budget   map[string]int `json:"budget"`
	Unlocked []string       `json:"unlocked"`
}

// Snapshot is an immutable read of the full game state.
type Snapshot struct {
	Turn      int       `json:"turn"`
	ViewerID  PlayerID  `json:"viewerId"`
	World     World     `json:"world"`
	Bodies    []Body    `json:"bodies"`
	Fleets    []Fleet   `json:"fleets"`
	Players   []Player  `json:"players"`
	Economy   Economy   `json:"economy"`
	Tech      TechState `json:"tech"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Validate checks that the snapshot is internally consistent: no entity references
// a counterpart id that does not exist.
func (s *Snapshot) Validate() error {
	bodies := make(map[BodyID]struct{}, len(s.Bodies))
	for _, b := range s.Bodies {
		if b.ID == "" {
			return fmt.Errorf("body id: %w", ErrMissingField)
		}
		bodies[b.ID] = struct{}{}
	}
	players := make(map[PlayerID]struct{}, len(s.Players))
	for _, p := range s.Players {
		players[p.ID] = struct{}{}
	}

	for _, b := range s.Bodies {
		if b.OwnerID != "" {
			if _, ok := players[b.OwnerID]; !ok {
				return fmt.Errorf("body %s owned by unknown player %s", b.ID, b.OwnerID)
			}
		}
		for _, sat := range b.Satellites {
			if _, ok := bodies[sat]; !ok {
				return fmt.Errorf("body %s references unknown satellite %s", b.ID, sat)
			}
		}
	}

	for _, f := range s.Fleets {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, ok := players[f.OwnerID]; !ok {
			return fmt.Errorf("fleet %s owned by unknown player %s", f.ID, f.OwnerID)
		}
		refs := []BodyID{f.StationedAt}
		if f.Transit != nil {
			refs = []BodyID{f.Transit.Origin, f.Transit.Destination}
		}
		for _, ref := range refs {
			if _, ok := bodies[ref]; !ok {
				return fmt.Errorf("fleet %s references unknown body %s", f.ID, ref)
			}
		}
	}
	return nil
}

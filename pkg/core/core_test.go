package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Turn:     3,
		ViewerID: "me",
		World:    World{Width: 100, Height: 100},
		Players:  []Player{{ID: "me", Color: "#00ff00"}, {ID: "them", Color: "#ff0000"}},
		Bodies: []Body{
			{ID: "a", State: BodyColonized, OwnerID: "me", Population: 10, Satellites: []BodyID{"m"}},
			{ID: "b", State: BodyUnexplored, OwnerID: "them", Population: 50, Defense: 4},
			{ID: "m", State: BodyExplored},
		},
		Fleets: []Fleet{
			{ID: "f2", OwnerID: "me", StationedAt: "a", Ships: map[ShipClass]int{"fighter": 2}},
			{ID: "f1", OwnerID: "me", StationedAt: "a", Ships: map[ShipClass]int{"fighter": 1, "frigate": 1}},
			{ID: "e1", OwnerID: "them", StationedAt: "a", Ships: map[ShipClass]int{"fighter": 9}},
			{ID: "gone", OwnerID: "me", StationedAt: "a", Ships: map[ShipClass]int{"fighter": 0}},
			{ID: "t1", OwnerID: "me", Ships: map[ShipClass]int{"frigate": 1},
				Transit: &Transit{Origin: "a", Destination: "b", DepartureTurn: 1, ArrivalTurn: 5}},
		},
	}
}

func TestSnapshot_Validate(t *testing.T) {
	s := sampleSnapshot()
	require.NoError(t, s.Validate())

	s.Fleets[0].Transit = &Transit{Origin: "a", Destination: "b"}
	assert.Error(t, s.Validate(), "stationed and in transit")

	s = sampleSnapshot()
	s.Fleets[4].Transit.Destination = "nowhere"
	assert.ErrorContains(t, s.Validate(), "unknown body nowhere")

	s = sampleSnapshot()
	s.Bodies[0].Satellites = []BodyID{"ghost"}
	assert.Error(t, s.Validate())

	s = sampleSnapshot()
	s.Fleets[0].OwnerID = "stranger"
	assert.Error(t, s.Validate())
}

func TestBody_Redacted(t *testing.T) {
	s := sampleSnapshot()
	s.Bodies[1].Budget = map[string]int{"mining": 100}
	hidden := s.Bodies[1].Redacted()
	assert.Empty(t, hidden.OwnerID)
	assert.Zero(t, hidden.Population)
	assert.Zero(t, hidden.Defense)
	assert.Nil(t, hidden.Budget)
	assert.NotNil(t, s.Bodies[1].Budget, "original must stay untouched")

	visible := s.Bodies[0].Redacted()
	assert.Equal(t, s.Bodies[0].OwnerID, visible.OwnerID)
}

func TestFleet_Helpers(t *testing.T) {
	s := sampleSnapshot()
	assert.Equal(t, 2, s.Fleets[1].ShipCount())
	assert.True(t, s.Fleets[3].Disbanded())
	assert.True(t, s.Fleets[4].InTransit())
	assert.Equal(t, BodyID("a"), s.Fleets[4].Location())

	err := Fleet{}.Validate()
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestIndex_Lookups(t *testing.T) {
	ix := NewIndex(sampleSnapshot())

	b, ok := ix.Body("b")
	require.True(t, ok)
	assert.Empty(t, b.OwnerID, "lookups are redacted")

	_, ok = ix.Body("zzz")
	assert.False(t, ok)

	at := ix.FleetsAt("a")
	ids := make([]FleetID, 0, len(at))
	for _, f := range at {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []FleetID{"e1", "f1", "f2"}, ids)

	assert.Len(t, ix.FleetsOwnedBy("me"), 3)
	assert.Equal(t, "#ff0000", ix.ColorOf("them", "#888888"))
	assert.Equal(t, "#888888", ix.ColorOf("", "#888888"))
	assert.Equal(t, map[ShipClass]int{"fighter": 3, "frigate": 1}, ix.ShipsAt("a", "me"))
	assert.Equal(t, PlayerID("me"), ix.Viewer())
}

func TestIndex_NilSnapshot(t *testing.T) {
	ix := NewIndex(nil)
	assert.Empty(t, ix.FleetsAt("a"))
	assert.Equal(t, 0, ix.Turn())
}

func TestCommands_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"move ok", MoveFleet{FleetID: "f", Destination: "b"}, false},
		{"move no dest", MoveFleet{FleetID: "f"}, true},
		{"send ok", SendShips{Origin: "a", Destination: "b", Ships: map[ShipClass]int{"fighter": 1}}, false},
		{"send empty", SendShips{Origin: "a", Destination: "b", Ships: map[ShipClass]int{"fighter": 0}}, true},
		{"send negative", SendShips{Origin: "a", Destination: "b", Ships: map[ShipClass]int{"fighter": -1, "frigate": 2}}, true},
		{"budget ok", UpdateBudget{TargetID: "a", Allocations: map[string]int{"x": 60, "y": 40}}, false},
		{"budget bad sum", UpdateBudget{TargetID: "a", Allocations: map[string]int{"x": 60}}, true},
		{"budget negative", UpdateBudget{TargetID: "a", Allocations: map[string]int{"x": -20, "y": 110, "z": 10}}, true},
		{"budget over 100", UpdateBudget{TargetID: "a", Allocations: map[string]int{"x": 101, "y": -1}}, true},
		{"disband ok", DisbandFleet{FleetID: "f"}, false},
		{"disband empty", DisbandFleet{}, true},
		{"create ok", CreateFleet{Name: "Home Guard", Origin: "a"}, false},
		{"create unnamed", CreateFleet{Origin: "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateBudget_OutOfRange(t *testing.T) {
	err := UpdateBudget{TargetID: "tech", Allocations: map[string]int{"mining": 110, "terraforming": -20, "shipbuilding": 10}}.Validate()
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRejectionError(t *testing.T) {
	var err error = &RejectionError{Kind: KindMoveFleet, Message: "Not enough fuel"}
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Not enough fuel", rej.Message)
	assert.Equal(t, "move_fleet rejected: Not enough fuel", err.Error())
}

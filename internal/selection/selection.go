// Package selection is the click/drag state machine that turns map input into
// fleet commands.
//
// State is an immutable value. Every event is a method returning the next
// state, any commands to submit, and a local validation error. Commands are
// never applied locally; the next snapshot refresh shows their outcome.
package selection

import (
	"errors"
	"fmt"

	"github.com/galaxycore/galaxyview/pkg/core"
)

var (
	// ErrUnavailable means the action does not apply to the current selection.
	ErrUnavailable = errors.New("action unavailable")
	// ErrEmptySelection means no ships were picked.
	ErrEmptySelection = errors.New("no ships selected")
	// ErrTooManyShips means more ships were picked than are stationed.
	ErrTooManyShips = errors.New("not enough ships")
	// ErrInvalidDestination means the chosen destination cannot be used.
	ErrInvalidDestination = errors.New("invalid destination")
)

// Mode is the state machine's current mode.
type Mode int

const (
	Idle Mode = iota
	BodySelected
	FleetSelected
	AwaitingDestination
	AwaitingShipSelection
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case BodySelected:
		return "body_selected"
	case FleetSelected:
		return "fleet_selected"
	case AwaitingDestination:
		return "awaiting_destination"
	case AwaitingShipSelection:
		return "awaiting_ship_selection"
	default:
		return "unknown"
	}
}

// Lookup is the read view of the current snapshot. *core.Index satisfies it.
type Lookup interface {
	Viewer() core.PlayerID
	Body(id core.BodyID) (core.Body, bool)
	Fleet(id core.FleetID) (core.Fleet, bool)
	ShipsAt(body core.BodyID, owner core.PlayerID) map[core.ShipClass]int
}

// State is the current selection. The zero value is Idle.
type State struct {
	mode  Mode
	body  core.BodyID  // selected body, ship-dispatch origin, or a selected fleet's paired body
	fleet core.FleetID // selected or awaiting fleet
	drag  bool         // AwaitingDestination entered by a drag gesture
}

// Mode returns the current mode.
func (s State) Mode() Mode { return s.mode }

// Body returns the selected body, the dispatch origin, or the body a selected
// fleet is paired with.
func (s State) Body() (core.BodyID, bool) { return s.body, s.body != "" }

// Fleet returns the selected or awaiting fleet.
func (s State) Fleet() (core.FleetID, bool) { return s.fleet, s.fleet != "" }

// Dragging reports whether a fleet drag gesture is in progress.
func (s State) Dragging() bool { return s.drag }

// Awaiting reports whether a destination or ship picker is open.
func (s State) Awaiting() bool {
	return s.mode == AwaitingDestination || s.mode == AwaitingShipSelection
}

func (s State) String() string {
	switch s.mode {
	case BodySelected, AwaitingShipSelection:
		return fmt.Sprintf("%s(%s)", s.mode, s.body)
	case FleetSelected:
		if s.body != "" {
			return fmt.Sprintf("%s(%s@%s)", s.mode, s.fleet, s.body)
		}
		return fmt.Sprintf("%s(%s)", s.mode, s.fleet)
	case AwaitingDestination:
		if s.drag {
			return fmt.Sprintf("%s(%s,drag)", s.mode, s.fleet)
		}
		return fmt.Sprintf("%s(%s)", s.mode, s.fleet)
	default:
		return s.mode.String()
	}
}

// SelectBody returns a BodySelected state.
func SelectBody(id core.BodyID) State { return State{mode: BodySelected, body: id} }

// SelectFleet returns a FleetSelected state with no paired body.
func SelectFleet(id core.FleetID) State { return State{mode: FleetSelected, fleet: id} }

// ClickBody handles a click that resolved to a body.
func (s State) ClickBody(l Lookup, id core.BodyID) (State, []core.Command, error) {
	switch s.mode {
	case BodySelected:
		if s.body == id {
			return State{}, nil, nil
		}
		return SelectBody(id), nil, nil
	case AwaitingDestination:
		return s.resolveDestination(l, id)
	case AwaitingShipSelection:
		if s.body == id {
			return s, nil, nil
		}
		return SelectBody(id), nil, nil
	default:
		return SelectBody(id), nil, nil
	}
}

// ClickFleet handles a click that resolved to a fleet. Selecting a fleet that
// is stationed at the currently selected body pairs the two; otherwise the
// previous selection and any open picker are cleared.
func (s State) ClickFleet(l Lookup, id core.FleetID) (State, []core.Command, error) {
	if s.mode == FleetSelected && s.fleet == id {
		return State{}, nil, nil
	}
	next := SelectFleet(id)
	if s.mode == BodySelected {
		if f, ok := l.Fleet(id); ok && f.Transit == nil && f.StationedAt == s.body {
			next.body = s.body
		}
	}
	return next, nil, nil
}

// ClickEmpty handles a click that resolved to nothing. It clears any
// selection and closes any picker without emitting a command.
func (s State) ClickEmpty() (State, []core.Command, error) {
	return State{}, nil, nil
}

// Cancel closes any picker and clears the selection.
func (s State) Cancel() State {
	return State{}
}

// InvokeSend opens destination selection for the selected fleet. The fleet
// must belong to the viewer and be stationed.
func (s State) InvokeSend(l Lookup) (State, error) {
	if s.mode != FleetSelected {
		return s, fmt.Errorf("%w: no fleet selected", ErrUnavailable)
	}
	if err := movable(l, s.fleet); err != nil {
		return s, err
	}
	return State{mode: AwaitingDestination, fleet: s.fleet}, nil
}

// InvokeDispatch opens the ship picker for the selected body. The body must
// belong to the viewer and have ships stationed.
func (s State) InvokeDispatch(l Lookup) (State, error) {
	if s.mode != BodySelected {
		return s, fmt.Errorf("%w: no body selected", ErrUnavailable)
	}
	b, ok := l.Body(s.body)
	if !ok || b.OwnerID != l.Viewer() {
		return s, fmt.Errorf("%w: body %s is not yours", ErrUnavailable, s.body)
	}
	if total(l.ShipsAt(s.body, l.Viewer())) == 0 {
		return s, fmt.Errorf("%w: no ships stationed at %s", ErrUnavailable, s.body)
	}
	return State{mode: AwaitingShipSelection, body: s.body}, nil
}

// ConfirmShips submits the ship picker. An empty or oversized pick is a local
// validation error and leaves the picker open.
func (s State) ConfirmShips(l Lookup, dest core.BodyID, ships map[core.ShipClass]int, name string) (State, []core.Command, error) {
	if s.mode != AwaitingShipSelection {
		return s, nil, fmt.Errorf("%w: ship picker is not open", ErrUnavailable)
	}
	if dest == s.body {
		return s, nil, fmt.Errorf("%w: ships are already at %s", ErrInvalidDestination, dest)
	}
	if _, ok := l.Body(dest); !ok {
		return s, nil, fmt.Errorf("%w: unknown body %s", ErrInvalidDestination, dest)
	}

	available := l.ShipsAt(s.body, l.Viewer())
	picked := make(map[core.ShipClass]int, len(ships))
	for class, n := range ships {
		if n < 0 {
			return s, nil, fmt.Errorf("%w: negative count for %s", ErrTooManyShips, class)
		}
		if n > available[class] {
			return s, nil, fmt.Errorf("%w: %d %s requested, %d available", ErrTooManyShips, n, class, available[class])
		}
		if n > 0 {
			picked[class] = n
		}
	}
	if len(picked) == 0 {
		return s, nil, ErrEmptySelection
	}

	cmd := core.SendShips{Origin: s.body, Destination: dest, Ships: picked, NewFleetName: name}
	if err := cmd.Validate(); err != nil {
		return s, nil, err
	}
	return State{}, []core.Command{cmd}, nil
}

// DragStart begins a drag gesture on a fleet. Only stationed fleets the
// viewer owns can be dragged; otherwise the state is unchanged and the caller
// should treat the gesture as an ordinary click.
func (s State) DragStart(l Lookup, id core.FleetID) (State, error) {
	if err := movable(l, id); err != nil {
		return s, err
	}
	return State{mode: AwaitingDestination, fleet: id, drag: true}, nil
}

// DragRelease ends a drag gesture. Releasing over a body other than the
// fleet's station emits a move; anything else ends the gesture quietly.
func (s State) DragRelease(l Lookup, target core.BodyID, overBody bool) (State, []core.Command, error) {
	if s.mode != AwaitingDestination || !s.drag {
		return s, nil, nil
	}
	if !overBody {
		return State{}, nil, nil
	}
	next, cmds, err := s.resolveDestination(l, target)
	if next.mode == AwaitingDestination {
		return State{}, nil, err
	}
	return next, cmds, err
}

// resolveDestination emits a move when dest differs from the fleet's current
// location. Clicking the fleet's own location keeps the picker open.
func (s State) resolveDestination(l Lookup, dest core.BodyID) (State, []core.Command, error) {
	f, ok := l.Fleet(s.fleet)
	if !ok || f.Disbanded() {
		return State{}, nil, nil
	}
	if dest == f.Location() {
		return s, nil, nil
	}
	cmd := core.MoveFleet{FleetID: s.fleet, Destination: dest}
	if err := cmd.Validate(); err != nil {
		return State{}, nil, err
	}
	return State{}, []core.Command{cmd}, nil
}

// Reconcile adapts the state to a freshly refreshed snapshot. Selections whose
// entity vanished are cleared; open pickers survive as long as their subject
// still exists.
func (s State) Reconcile(l Lookup) State {
	switch s.mode {
	case BodySelected:
		if _, ok := l.Body(s.body); !ok {
			return State{}
		}
	case FleetSelected:
		f, ok := l.Fleet(s.fleet)
		if !ok || f.Disbanded() {
			return State{}
		}
		if s.body != "" && (f.Transit != nil || f.StationedAt != s.body) {
			s.body = ""
		}
	case AwaitingDestination:
		f, ok := l.Fleet(s.fleet)
		if !ok || f.Disbanded() {
			return State{}
		}
	case AwaitingShipSelection:
		b, ok := l.Body(s.body)
		if !ok || b.OwnerID != l.Viewer() {
			return State{}
		}
	}
	return s
}

// AvailableShips returns the per-class ships the viewer can dispatch from the
// picker's origin.
func (s State) AvailableShips(l Lookup) map[core.ShipClass]int {
	if s.mode != AwaitingShipSelection {
		return nil
	}
	return l.ShipsAt(s.body, l.Viewer())
}

func movable(l Lookup, id core.FleetID) error {
	f, ok := l.Fleet(id)
	switch {
	case !ok || f.Disbanded():
		return fmt.Errorf("%w: fleet %s no longer exists", ErrUnavailable, id)
	case f.OwnerID != l.Viewer():
		return fmt.Errorf("%w: fleet %s is not yours", ErrUnavailable, id)
	case f.Transit != nil:
		return fmt.Errorf("%w: fleet %s is in transit", ErrUnavailable, id)
	}
	return nil
}

func total(ships map[core.ShipClass]int) int {
	n := 0
	for _, c := range ships {
		n += c
	}
	return n
}

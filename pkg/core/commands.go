// pkg/core/commands.go
package core

import "fmt"

// Command kinds, also used as the backend endpoint suffix.
const (
	KindMoveFleet    = "move_fleet"
	KindSendShips    = "send_ships"
	KindUpdateBudget = "update_budget"
	KindDisbandFleet = "disband_fleet"
	KindCreateFleet  = "create_fleet"
)

// Command is a proposal sent to the backend. The client never applies it locally.
type Command interface {
	Kind() string
	Validate() error
}

// MoveFleet sends a whole fleet to a destination body.
type MoveFleet struct {
	FleetID     FleetID `json:"fleetId"`
	Destination BodyID  `json:"destination"`
}

func (MoveFleet) Kind() string { return KindMoveFleet }

func (c MoveFleet) Validate() error {
	if c.FleetID == "" {
		return fmt.Errorf("move fleet: fleet id: %w", ErrMissingField)
	}
	if c.Destination == "" {
		return fmt.Errorf("move fleet: destination: %w", ErrMissingField)
	}
	return nil
}

// SendShips detaches part of the ships stationed at Origin into a new fleet.
type SendShips struct {
	Origin       BodyID            `json:"origin"`
	Destination  BodyID            `json:"destination"`
	Ships        map[ShipClass]int `json:"ships"`
	NewFleetName string            `json:"newFleetName,omitempty"`
}

func (SendShips) Kind() string { return KindSendShips }

func (c SendShips) Validate() error {
	if c.Origin == "" || c.Destination == "" {
		return fmt.Errorf("send ships: origin and destination: %w", ErrMissingField)
	}
	total := 0
	for class, n := range c.Ships {
		if n < 0 {
			return fmt.Errorf("send ships: negative count for %s", class)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("send ships: ships: %w", ErrMissingField)
	}
	return nil
}

// UpdateBudget replaces the allocation map of a budget target (a body or the tech tree).
type UpdateBudget struct {
	TargetID    string         `json:"targetId"`
	Allocations map[string]int `json:"allocations"`
}

func (UpdateBudget) Kind() string { return KindUpdateBudget }

func (c UpdateBudget) Validate() error {
	if c.TargetID == "" {
		return fmt.Errorf("update budget: target id: %w", ErrMissingField)
	}
	sum := 0
	for k, v := range c.Allocations {
		if v < 0 || v > 100 {
			return fmt.Errorf("update budget: %s = %d: %w", k, v, ErrOutOfRange)
		}
		sum += v
	}
	if sum != 100 {
		return fmt.Errorf("update budget: allocations sum to %d, want 100", sum)
	}
	return nil
}

// DisbandFleet scraps a fleet. The result may carry recovered metal.
type DisbandFleet struct {
	FleetID FleetID `json:"fleetId"`
}

func (DisbandFleet) Kind() string { return KindDisbandFleet }

func (c DisbandFleet) Validate() error {
	if c.FleetID == "" {
		return fmt.Errorf("disband fleet: fleet id: %w", ErrMissingField)
	}
	return nil
}

// CreateFleet creates an empty named fleet at a body.
type CreateFleet struct {
	Name   string `json:"name"`
	Origin BodyID `json:"origin"`
}

func (CreateFleet) Kind() string { return KindCreateFleet }

func (c CreateFleet) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("create fleet: name: %w", ErrMissingField)
	}
	if c.Origin == "" {
		return fmt.Errorf("create fleet: origin: %w", ErrMissingField)
	}
	return nil
}

// CommandResult is the backend's answer to a command.
type CommandResult struct {
	Accepted bool           `json:"ok"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// RejectionError is a structured refusal of a valid command. Message is shown verbatim.
type RejectionError struct {
	Kind    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Kind, e.Message)
}

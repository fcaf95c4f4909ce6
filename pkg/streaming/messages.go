package streaming

import (
	"encoding/json"
)

// Message type constants for the change notification channel.
const (
	TypeSnapshotChanged = "snapshot_changed"
	TypeTurnAdvanced    = "turn_advanced"
	TypeCommandResolved = "command_resolved"
	TypePing            = "ping"
	TypeSubscribe       = "subscribe"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SnapshotChangedPayload announces that a newer snapshot is available.
type SnapshotChangedPayload struct {
	Turn int `json:"turn"`
}

// CommandResolvedPayload reports the outcome of a previously accepted command
// once the backend has applied it.
type CommandResolvedPayload struct {
	Kind    string `json:"kind"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// SubscribePayload is sent by the client right after connecting.
type SubscribePayload struct {
	PlayerID string `json:"playerId"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

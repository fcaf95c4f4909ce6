package logging

import (
	"context"
	"log/slog"
)

// SessionState reports what the viewer is looking at right now.
type SessionState interface {
	// LogState returns the current turn (0 before the first snapshot) and a
	// short description of the selection ("" when idle).
	LogState() (turn int, selection string)
}

// SessionHandler wraps another handler and stamps each record with the
// current turn and selection. Attributes are read at log time, so records
// emitted from background goroutines carry the state of that moment.
type SessionHandler struct {
	inner slog.Handler
	state SessionState
}

// NewSessionHandler creates a handler that adds session state to each record.
func NewSessionHandler(inner slog.Handler, state SessionState) *SessionHandler {
	return &SessionHandler{inner: inner, state: state}
}

// Enabled delegates to the inner handler.
func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the session attributes and delegates to the inner handler.
func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	turn, sel := h.state.LogState()
	if turn > 0 {
		r.AddAttrs(slog.Int("turn", turn))
	}
	if sel != "" {
		r.AddAttrs(slog.String("selection", sel))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new SessionHandler with the given attributes.
func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a new SessionHandler with the given group.
func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// Package notice turns outcomes into short user-facing messages.
package notice

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/galaxycore/galaxyview/internal/api"
	"github.com/galaxycore/galaxyview/internal/budget"
	"github.com/galaxycore/galaxyview/internal/queue"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/pkg/core"
)

// Level classifies a notice.
type Level int

const (
	Info Level = iota
	Success
	Validation
	Rejected
	Stale
	Failure
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Success:
		return "success"
	case Validation:
		return "validation"
	case Rejected:
		return "rejected"
	case Stale:
		return "stale"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Notice is one message shown to the player.
type Notice struct {
	Level   Level
	Kind    string // command kind, if any
	Message string
	At      time.Time
	// Ref ties notices about the same thing together; a newer one replaces
	// an older one with the same non-empty Ref.
	Ref string
}

// CommandRef is the Ref shared by every notice about a command kind.
func CommandRef(kind string) string {
	return "command:" + kind
}

// Classify maps an error onto a notice level.
func Classify(err error) Level {
	var rej *core.RejectionError
	switch {
	case err == nil:
		return Success
	case errors.As(err, &rej):
		return Rejected
	case errors.Is(err, budget.ErrSumNot100),
		errors.Is(err, budget.ErrUnknownKey),
		errors.Is(err, core.ErrOutOfRange),
		errors.Is(err, selection.ErrEmptySelection),
		errors.Is(err, selection.ErrTooManyShips),
		errors.Is(err, selection.ErrInvalidDestination),
		errors.Is(err, selection.ErrUnavailable),
		errors.Is(err, core.ErrMissingField):
		return Validation
	case errors.Is(err, api.ErrTransport),
		errors.Is(err, context.DeadlineExceeded):
		return Stale
	default:
		return Failure
	}
}

// FromError builds a notice for err. Rejections carry the backend's message verbatim.
func FromError(kind string, err error, at time.Time) Notice {
	n := Notice{Level: Classify(err), Kind: kind, At: at}
	var rej *core.RejectionError
	switch {
	case err == nil:
		n.Message = "Done"
	case errors.As(err, &rej):
		n.Message = rej.Message
	case n.Level == Stale:
		n.Message = "Connection problem, showing last known state"
	default:
		n.Message = err.Error()
	}
	return n
}

// Log writes n at the severity its level deserves. Validation problems are
// player mistakes and stay at debug.
func Log(logger *slog.Logger, n Notice) {
	attrs := []any{"level", n.Level.String(), "message", n.Message}
	if n.Kind != "" {
		attrs = append(attrs, "kind", n.Kind)
	}
	switch n.Level {
	case Validation:
		logger.Debug("notice", attrs...)
	case Stale:
		logger.Warn("notice", attrs...)
	case Failure:
		logger.Error("notice", attrs...)
	default:
		logger.Info("notice", attrs...)
	}
}

// Inbox collects notices posted from any goroutine and exposes the ones still
// on screen to the render loop.
type Inbox struct {
	pending *queue.Queue[Notice]
	active  []Notice
	ttl     time.Duration
	limit   int
}

// NewInbox keeps at most limit notices visible for ttl each.
func NewInbox(limit int, ttl time.Duration) *Inbox {
	if limit <= 0 {
		limit = 5
	}
	return &Inbox{
		pending: queue.New[Notice](limit),
		ttl:     ttl,
		limit:   limit,
	}
}

// Post queues a notice. Safe for concurrent use.
func (in *Inbox) Post(n Notice) {
	in.pending.Push(n)
}

// Collect moves posted notices on screen, expires old ones and returns the
// visible set, oldest first. Call from the render loop only.
func (in *Inbox) Collect(now time.Time) []Notice {
	for _, n := range in.pending.Drain() {
		if n.Ref != "" {
			in.active = slices.DeleteFunc(in.active, func(o Notice) bool { return o.Ref == n.Ref })
		}
		in.active = append(in.active, n)
	}

	kept := in.active[:0]
	for _, n := range in.active {
		if in.ttl <= 0 || now.Sub(n.At) < in.ttl {
			kept = append(kept, n)
		}
	}
	if over := len(kept) - in.limit; over > 0 {
		kept = kept[over:]
	}
	in.active = kept
	return append([]Notice(nil), in.active...)
}

package notice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/galaxycore/galaxyview/internal/api"
	"github.com/galaxycore/galaxyview/internal/budget"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Level
	}{
		{"nil", nil, Success},
		{"budget sum", fmt.Errorf("%w: got 90", budget.ErrSumNot100), Validation},
		{"budget range", fmt.Errorf("%w: mining = 110", budget.ErrOutOfRange), Validation},
		{"empty ships", selection.ErrEmptySelection, Validation},
		{"too many", fmt.Errorf("x: %w", selection.ErrTooManyShips), Validation},
		{"missing field", fmt.Errorf("move: %w", core.ErrMissingField), Validation},
		{"rejection", &core.RejectionError{Kind: "move_fleet", Message: "No"}, Rejected},
		{"wrapped rejection", fmt.Errorf("submit: %w", &core.RejectionError{Message: "No"}), Rejected},
		{"transport", fmt.Errorf("%w: dial", api.ErrTransport), Stale},
		{"timeout", context.DeadlineExceeded, Stale},
		{"other", errors.New("boom"), Failure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFromError_RejectionVerbatim(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n := FromError(core.KindSendShips, &core.RejectionError{Kind: core.KindSendShips, Message: "Only 3 frigates available"}, at)

	assert.Equal(t, Rejected, n.Level)
	assert.Equal(t, "Only 3 frigates available", n.Message)
	assert.Equal(t, core.KindSendShips, n.Kind)
	assert.Equal(t, at, n.At)

	assert.Equal(t, "Done", FromError("", nil, at).Message)
	assert.Contains(t, FromError("", fmt.Errorf("%w: x", api.ErrTransport), at).Message, "last known state")
}

func TestLog_Severity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Log(logger, Notice{Level: Validation, Message: "sum"})
	Log(logger, Notice{Level: Rejected, Message: "no", Kind: "move_fleet"})
	Log(logger, Notice{Level: Stale, Message: "down"})
	Log(logger, Notice{Level: Failure, Message: "boom"})

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=notice level=validation")
	assert.Contains(t, out, "level=INFO msg=notice level=rejected")
	assert.Contains(t, out, "kind=move_fleet")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=ERROR")
}

func TestInbox_ExpiresAndCaps(t *testing.T) {
	in := NewInbox(3, time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	in.Post(Notice{Message: "a", At: t0})
	in.Post(Notice{Message: "b", At: t0.Add(500 * time.Millisecond)})

	got := in.Collect(t0.Add(600 * time.Millisecond))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)

	got = in.Collect(t0.Add(1200 * time.Millisecond))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Message)

	now := t0.Add(1300 * time.Millisecond)
	for _, m := range []string{"c", "d", "e"} {
		in.Post(Notice{Message: m, At: now})
	}
	got = in.Collect(now)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Message)
	assert.Equal(t, "e", got[2].Message)
}

func TestInbox_SameRefReplaces(t *testing.T) {
	in := NewInbox(5, 0)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ref := CommandRef("move_fleet")

	in.Post(Notice{Level: Success, Kind: "move_fleet", Message: "Fleet f1 ordered to sol", At: t0, Ref: ref})
	in.Post(Notice{Message: "turn 12", At: t0})
	require.Len(t, in.Collect(t0), 2)

	in.Post(Notice{Level: Rejected, Kind: "move_fleet", Message: "fleet out of fuel", At: t0.Add(time.Second), Ref: ref})
	got := in.Collect(t0.Add(time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, "turn 12", got[0].Message)
	assert.Equal(t, Rejected, got[1].Level)
	assert.Equal(t, "fleet out of fuel", got[1].Message)
}

func TestInbox_EmptyRefKeepsBoth(t *testing.T) {
	in := NewInbox(5, 0)
	in.Post(Notice{Kind: "move_fleet", Message: "a"})
	in.Post(Notice{Kind: "move_fleet", Message: "b"})
	assert.Len(t, in.Collect(time.Now()), 2)
}

func TestInbox_ConcurrentPost(t *testing.T) {
	in := NewInbox(100, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in.Post(Notice{Message: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, in.Collect(time.Now()), 50)
}

package main

import (
	"testing"
	"time"

	"github.com/galaxycore/galaxyview/internal/notice"
	"github.com/galaxycore/galaxyview/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedNotice_ReplacesAcceptance(t *testing.T) {
	in := notice.NewInbox(5, 0)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in.Post(notice.Notice{Level: notice.Success, Kind: "move_fleet", Message: "Fleet f1 ordered to vega", At: t0, Ref: notice.CommandRef("move_fleet")})
	require.Len(t, in.Collect(t0), 1)

	in.Post(resolvedNotice(streaming.CommandResolvedPayload{Kind: "move_fleet", Message: "route blocked"}, t0.Add(time.Second)))
	got := in.Collect(t0.Add(time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, notice.Rejected, got[0].Level)
	assert.Equal(t, "route blocked", got[0].Message)
}

func TestResolvedNotice_DefaultMessage(t *testing.T) {
	n := resolvedNotice(streaming.CommandResolvedPayload{Kind: "update_budget"}, time.Now())
	assert.Equal(t, "update_budget rejected", n.Message)
	assert.Equal(t, notice.CommandRef("update_budget"), n.Ref)
}

package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/galaxycore/galaxyview/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)

	// recording before a connection is a no-op
	m.RecordCommand("move_fleet", "accepted", time.Second)
	assert.NoError(t, m.Close())
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.lp.gz")
	cfg := config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1", // nothing listens here
		Org:      "galaxyview",
		Bucket:   "client",
	}
	m := NewManager(cfg, zerolog.Nop(), path)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))

	m.RecordCommand("move_fleet", "accepted", 250*time.Millisecond)
	m.RecordRefresh(12, errors.New("backend returned 503"))
	require.NoError(t, m.Close())

	out := readBackup(t, path)
	assert.Contains(t, out, "command,kind=move_fleet,outcome=accepted duration_ms=250 1700000000000000000\n")
	assert.Contains(t, out, `snapshot_refresh error="backend returned 503",ok=false,turn=12i`)
}

func TestConnect_NoBackupPath(t *testing.T) {
	cfg := config.InfluxConfig{Enabled: true, Protocol: "http", Host: "127.0.0.1", Port: "1"}
	m := NewManager(cfg, zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
}

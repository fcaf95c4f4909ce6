package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []*gelf.Message
	err  error
}

func (c *captureWriter) WriteMessage(m *gelf.Message) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

func TestGELFHandler_Message(t *testing.T) {
	w := &captureWriter{}
	logger := slog.New(NewGELFHandler(w, "info"))

	logger.Debug("ignored")
	logger.Warn("refresh failed\nbackend returned 503", "attempt", 3, "stale", true, "id", "f1")

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "refresh failed", m.Short)
	assert.Equal(t, "backend returned 503", m.Full)
	assert.Equal(t, int32(4), m.Level)
	assert.Positive(t, m.TimeUnix)
	assert.Equal(t, int64(3), m.Extra["attempt"])
	assert.Equal(t, true, m.Extra["stale"])
	assert.Equal(t, "f1", m.Extra["entity_id"])
	assert.NotContains(t, m.Extra, "id")
}

func TestGELFHandler_AttrsAndGroups(t *testing.T) {
	w := &captureWriter{}
	logger := slog.New(NewGELFHandler(w, "debug")).
		With("component", "poller").
		WithGroup("cmd").
		With("kind", "move_fleet")

	logger.Error("rejected", slog.Group("fleet", "name", "Home Guard"))

	require.Len(t, w.msgs, 1)
	extra := w.msgs[0].Extra
	assert.Equal(t, "poller", extra["component"])
	assert.Equal(t, "move_fleet", extra["cmd.kind"])
	assert.Equal(t, "Home Guard", extra["cmd.fleet.name"])
	assert.Equal(t, int32(3), w.msgs[0].Level)
}

func TestGELFHandler_InMultiHandler(t *testing.T) {
	w := &captureWriter{err: errors.New("udp down")}

	m := NewSlogManager()
	m.Setup(nil, "info", nil, NewGELFHandler(w, "warn"))
	m.Logger().Info("info only goes to stdout")
	m.Logger().Warn("warn goes to graylog too")

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "warn goes to graylog too", w.msgs[0].Short)
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}

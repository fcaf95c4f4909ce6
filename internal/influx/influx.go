// Package influx ships client telemetry: command outcomes and refresh health.
// When the server cannot be reached, points go to a gzip'd line-protocol
// backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/galaxycore/galaxyview/internal/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by Connect when telemetry is switched off.
var ErrDisabled = errors.New("influx telemetry disabled")

// Measurement names.
const (
	MeasurementCommand = "command"
	MeasurementRefresh = "snapshot_refresh"
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	log        zerolog.Logger
	now        func() time.Time

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	valid      bool
	backupFile *os.File
	backup     *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{cfg: cfg, backupPath: backupPath, log: log, now: time.Now}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(5000),
	)

	// validate client connection health
	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.log.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing telemetry to backup file")
		m.client.Close()
		return m.openBackup()
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.log.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	m.log.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.mu.Lock()
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	m.mu.Unlock()
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	org, err := m.client.OrganizationsAPI().FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = m.client.OrganizationsAPI().CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.log.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// WritePoint writes a point to InfluxDB or the backup file. It is a no-op
// before Connect succeeds.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.valid:
		m.writer.WritePoint(point)
	case m.backup != nil:
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	}
	return nil
}

// RecordCommand records one command outcome.
func (m *Manager) RecordCommand(kind, outcome string, took time.Duration) {
	p := influxdb2_write.NewPoint(MeasurementCommand,
		map[string]string{"kind": kind, "outcome": outcome},
		map[string]any{"duration_ms": float64(took) / float64(time.Millisecond)},
		m.now(),
	)
	if err := m.WritePoint(p); err != nil {
		m.log.Error().Err(err).Msg("Failed to record command")
	}
}

// RecordRefresh records one snapshot refresh attempt.
func (m *Manager) RecordRefresh(turn int, err error) {
	ok := err == nil
	fields := map[string]any{"ok": ok, "turn": turn}
	if !ok {
		fields["error"] = err.Error()
	}
	p := influxdb2_write.NewPoint(MeasurementRefresh, nil, fields, m.now())
	if werr := m.WritePoint(p); werr != nil {
		m.log.Error().Err(werr).Msg("Failed to record refresh")
	}
}

// Close flushes pending points and closes the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.Flush()
		m.client.Close()
		m.valid = false
	}
	if m.backup != nil {
		if err := m.backup.Close(); err != nil {
			return fmt.Errorf("close backup writer: %w", err)
		}
		m.backup = nil
		return m.backupFile.Close()
	}
	return nil
}

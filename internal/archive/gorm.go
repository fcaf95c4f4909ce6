package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/galaxycore/galaxyview/internal/config"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one archived snapshot row.
type Record struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ViewerID  string    `gorm:"size:64;index:idx_snapshots_viewer"`
	Turn      int
	Digest    string `gorm:"size:64"`
	FetchedAt time.Time
	Size      int
	Summary   datatypes.JSON
	Payload   []byte
}

// TableName implements gorm's tabler.
func (Record) TableName() string { return "snapshots" }

// Gorm archives snapshots in a SQL database.
type Gorm struct {
	db   *gorm.DB
	keep int
	log  zerolog.Logger
}

func newGormStore(db *gorm.DB, keep int, log zerolog.Logger) (*Gorm, error) {
	log.Info().Str("dialect", db.Dialector.Name()).Msg("Migrating archive schema")
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return &Gorm{db: db, keep: keep, log: log}, nil
}

// openPostgres connects to the Postgres archive.
func openPostgres(cfg config.PostgresConfig, log zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
	log.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres archive")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres archive: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	log.Info().Msg("Connected to Postgres archive")
	return db, nil
}

// openSqlite opens a SQLite archive file. An empty path uses an in-memory
// database.
func openSqlite(path string, log zerolog.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// single writer; also keeps one :memory: database per store
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if path == "" {
		log.Info().Msg("Using in-memory SQLite archive")
	} else {
		log.Info().Str("path", path).Msg("Using SQLite archive")
	}
	return db, nil
}

// Save implements Store.
func (g *Gorm) Save(ctx context.Context, snap *core.Snapshot) error {
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	db := g.db.WithContext(ctx)
	viewer := string(snap.ViewerID)

	var last Record
	err = db.Select("digest").Where("viewer_id = ?", viewer).Order("id desc").Take(&last).Error
	switch {
	case err == nil && last.Digest == enc.digest:
		g.log.Debug().Int("turn", snap.Turn).Msg("Snapshot unchanged, not archived")
		return nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("read latest archive digest: %w", err)
	}

	summary, err := json.Marshal(summarize(snap))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	rec := Record{
		ViewerID:  viewer,
		Turn:      snap.Turn,
		Digest:    enc.digest,
		FetchedAt: enc.fetchedAt,
		Size:      len(enc.payload),
		Summary:   datatypes.JSON(summary),
		Payload:   enc.payload,
	}

	start := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		newest := tx.Model(&Record{}).Select("id").Where("viewer_id = ?", viewer).Order("id desc").Limit(g.keep)
		return tx.Where("viewer_id = ? AND id NOT IN (?)", viewer, newest).Delete(&Record{}).Error
	})
	if err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}

	g.log.Debug().
		Int("turn", snap.Turn).
		Int("bytes", len(enc.payload)).
		Dur("duration", time.Since(start)).
		Msg("Archived snapshot")
	return nil
}

// Latest implements Store.
func (g *Gorm) Latest(ctx context.Context, viewer core.PlayerID) (*core.Snapshot, error) {
	var rec Record
	err := g.db.WithContext(ctx).Where("viewer_id = ?", string(viewer)).Order("id desc").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read archived snapshot: %w", err)
	}
	return decode(rec.Payload, rec.FetchedAt)
}

// List implements Store.
func (g *Gorm) List(ctx context.Context, viewer core.PlayerID) ([]Entry, error) {
	var recs []Record
	err := g.db.WithContext(ctx).
		Select("turn", "digest", "fetched_at", "size", "summary").
		Where("viewer_id = ?", string(viewer)).
		Order("id desc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list archived snapshots: %w", err)
	}

	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		e := Entry{Turn: r.Turn, Digest: r.Digest, FetchedAt: r.FetchedAt, Size: r.Size}
		if err := json.Unmarshal(r.Summary, &e.Summary); err != nil {
			return nil, fmt.Errorf("decode summary for turn %d: %w", r.Turn, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close implements Store.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

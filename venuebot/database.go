package venuebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// TriggerEvent is an audit row recording the terminal outcome of a single
// trigger invocation. Only finished invocations are written; the pending
// queue is never persisted, so a restart always starts with an empty
// queue and an empty set of in-flight rows.
type TriggerEvent struct {
	ModelUintID
	ModelUnixTime

	// Action is the trigger name sent to TriggerCMD
	Action string `gorm:"index" json:"action"`

	// EncodedName is the base64 identity token the request carried,
	// empty for actions that take no name
	EncodedName string `json:"encoded_name,omitempty"`

	// ZoomName is the decoded identity, when decoding succeeded
	ZoomName string `json:"zoom_name,omitempty"`

	// Origin records who initiated the request (self, admin, channel)
	Origin string `gorm:"index" json:"origin,omitempty"`

	// Success mirrors the collapsed boolean result of the invocation
	Success bool `gorm:"index" json:"success"`

	// Detail is an optional human-readable note (decode failures,
	// worker recovery, admin context)
	Detail string `json:"detail,omitempty"`
}

// database wraps the GORM connection with a write mutex. SQLite only
// supports a single writer, so all writes are serialized; reads go
// straight through.
type database struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

func newDatabase(db *gorm.DB, log *slog.Logger) *database {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:     db,
		logger: log.With(loggerNameKey, "writedb"),
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

// RecordEvent inserts a terminal trigger outcome.
func (d *database) RecordEvent(ctx context.Context, event *TriggerEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.db.WithContext(ctx).Create(event).Error
	if err != nil {
		d.logger.ErrorContext(
			ctx,
			"error recording trigger event",
			tint.Err(err),
			"event", event,
		)
	}
	return err
}

// RecentEvents returns up to limit trigger events, newest first.
func (d *database) RecentEvents(ctx context.Context, limit int) ([]TriggerEvent, error) {
	var events []TriggerEvent
	err := d.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// CreateDB initializes and returns a GORM database connection based on
// the specified database type, and migrates the event log schema.
func CreateDB(
	ctx context.Context,
	databaseType string,
	database string,
	handler slog.Handler,
	slowThreshold time.Duration,
) (*gorm.DB, error) {
	if handler == nil {
		handler = tint.NewHandler(
			os.Stdout,
			&tint.Options{
				Level:     slog.LevelWarn,
				AddSource: true,
			},
		)
	}
	gormLogger := newGORMLogger(handler, slowThreshold)
	dbLogger := slog.New(handler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)
	db, err := getDB(databaseType, database, gormLogger)
	if err != nil {
		return db, err
	}

	if databaseType == dbTypeSQLite {
		sqlDB, sqlErr := db.DB()
		if sqlErr != nil {
			return db, sqlErr
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		for _, pragma := range sqliteExecPragma {
			if execErr := db.WithContext(ctx).Exec(pragma).Error; execErr != nil {
				return db, execErr
			}
		}
	}

	txn := db.WithContext(ctx).Begin()
	if err = txn.Migrator().AutoMigrate(&TriggerEvent{}); err != nil {
		txn.Rollback()
		return db, err
	}
	if commitErr := txn.Commit().Error; commitErr != nil {
		return db, commitErr
	}

	return db, nil
}

func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(
			sqlite.Open(database),
			&gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	case dbTypePostgres:
		return gorm.Open(
			postgres.Open(database), &gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}

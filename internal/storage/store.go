// Package storage persists photo records.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/storage/migrations"
)

// PhotoStore is the record store contract shared by every database driver.
type PhotoStore interface {
	// CreatePhoto inserts p and fills in its ID and CreatedAt.
	CreatePhoto(ctx context.Context, p *models.Photo) error
	// ListPhotosForDay returns a user's photos for one day, newest first.
	ListPhotosForDay(ctx context.Context, userID string, day int) ([]models.Photo, error)
	// ListPhotosForUser returns a user's photos within the optional inclusive
	// day range, ordered by day then creation time ascending.
	ListPhotosForUser(ctx context.Context, userID string, fromDay, toDay *int) ([]models.Photo, error)
	Ping(ctx context.Context) error
	Close()
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (PhotoStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	case config.DriverPostgres:
		if err := migratePostgres(ctx, cfg.DSN()); err != nil {
			return nil, err
		}
		return NewPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate runs the embedded migrations for driver against db.
func Migrate(ctx context.Context, db *sql.DB, driver config.DatabaseDriver) error {
	var dialect, dir string
	switch driver {
	case config.DriverSQLite:
		dialect, dir = "sqlite3", "sqlite"
	case config.DriverPostgres:
		dialect, dir = "pgx", "postgres"
	default:
		return fmt.Errorf("unknown database driver %q", driver)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}
	defer db.Close()
	return Migrate(ctx, db, config.DriverPostgres)
}

package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/devicekeeper/internal/client/migrations"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/devices"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/metadata"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the local stores opened by InitDatabase.
type Repositories struct {
	DB       *sql.DB
	Devices  devices.Repository
	Metadata metadata.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// DSN builds the SQLite connection string for a database file.
func DSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// OpenDatabase opens the SQLite file at path and applies migrations.
func OpenDatabase(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	db, err := OpenDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		DB:       db,
		Devices:  devices.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}

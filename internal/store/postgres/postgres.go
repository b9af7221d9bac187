// Package postgres keeps decision records in PostgreSQL. The schema ships
// as embedded migrations that are applied when the store is opened.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Writers are the lanes and the HTTP handlers, so a small pool suffices.
const (
	maxOpenConns    = 8
	maxIdleConns    = 4
	connMaxLifetime = 5 * time.Minute
)

type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// New connects to databaseURL and migrates the schema to the latest version.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateUp(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("postgres store ready", "schema_version", version)
	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an open database as is. Tests use it with sqlmock.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// migrateUp applies pending migrations and returns the resulting version.
func migrateUp(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("migrations source: %w", err)
	}
	drv, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return 0, fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return 0, fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty; fix it by hand and rerun", version)
	}
	return version, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.Record) error {
	return queryCreateRecord(ctx, s.db, rec)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, id)
}

func (s *PostgresStore) ReplaceFields(ctx context.Context, id string, fields []model.Field) error {
	return queryReplaceFields(ctx, s.db, id, fields)
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	return queryDeleteRecord(ctx, s.db, id)
}

func (s *PostgresStore) ListPage(ctx context.Context, q store.PageQuery) ([]*model.Record, error) {
	return queryListPage(ctx, s.db, q)
}

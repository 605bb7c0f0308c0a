// Package postgres implements store.Store and cache.Cache backed by
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/graphsync/internal/cache"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore holds the resource cache and the graph in one database.
type PostgresStore struct {
	graph
	db *sql.DB
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Store = txStore{}
	_ cache.Cache = (*PostgresStore)(nil)
)

// New connects to databaseURL and applies pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{graph: graph{db: db}, db: db}
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "graphsync_migrations"})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunInTransaction calls fn with a store bound to one transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txStore{graph{db: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore is the store handed to RunInTransaction callbacks. Nested
// transactions reuse the outer one, and the outer store owns the connection.
type txStore struct {
	graph
}

func (t txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (txStore) Close() error { return nil }

// graph runs the graph queries against a database or a transaction.
type graph struct {
	db executor
}

func (g graph) GetEntity(ctx context.Context, key string) (*model.Entity, string, error) {
	return queryGetEntity(ctx, g.db, key)
}

func (g graph) UpsertEntity(ctx context.Context, e *model.Entity) error {
	return queryUpsertEntity(ctx, g.db, e)
}

func (g graph) DeleteEntity(ctx context.Context, key string) error {
	return queryDeleteEntity(ctx, g.db, key)
}

func (g graph) ListEntities(ctx context.Context, entityType string) ([]*model.Entity, error) {
	return queryListEntities(ctx, g.db, entityType)
}

func (g graph) GetRelationship(ctx context.Context, key string) (*model.Relationship, string, error) {
	return queryGetRelationship(ctx, g.db, key)
}

func (g graph) UpsertRelationship(ctx context.Context, r *model.Relationship) error {
	return queryUpsertRelationship(ctx, g.db, r)
}

func (g graph) DeleteRelationship(ctx context.Context, key string) error {
	return queryDeleteRelationship(ctx, g.db, key)
}

func (g graph) ListRelationships(ctx context.Context, relType string) ([]*model.Relationship, error) {
	return queryListRelationships(ctx, g.db, relType)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/graphsync/internal/cache"
	"github.com/alfredjeanlab/graphsync/internal/model"
)

func (s *PostgresStore) GetState(ctx context.Context, collection string) (*model.CacheState, error) {
	st := model.CacheState{Collection: collection}
	err := s.db.QueryRowContext(ctx,
		`SELECT state, updated_at FROM cache_states WHERE collection = $1`, collection,
	).Scan(&st.State, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) SetState(ctx context.Context, collection string, state model.FetchState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_states (collection, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (collection) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		collection, string(state),
	)
	return err
}

// Put inserts entries in one transaction so a page is either fully
// cached or not at all.
func (s *PostgresStore) Put(ctx context.Context, collection string, entries ...model.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cache_entries (collection, key, data, fetched_at, cursor)
			VALUES ($1, $2, $3, $4, $5)`,
			collection, e.Key, []byte(e.Data), e.FetchedAt, nullString(e.Cursor),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert cache entry %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ForEach streams entries row by row in insertion order; the collection is
// never loaded into memory as a whole.
func (s *PostgresStore) ForEach(ctx context.Context, collection string, visit cache.Visitor) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, fetched_at, cursor FROM cache_entries WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return fmt.Errorf("query %s cache entries: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return fmt.Errorf("scan %s cache entry: %w", collection, err)
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE collection = $1`, collection); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete %s cache entries: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_states WHERE collection = $1`, collection); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete %s cache state: %w", collection, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

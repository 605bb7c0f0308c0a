package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// entityColumns is the column list used for SELECT statements on graph_entities.
const entityColumns = `key, type, class, properties, hash`

// relationshipColumns is the column list used for SELECT statements on graph_relationships.
const relationshipColumns = `key, type, class, from_key, to_key, properties, hash`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGetEntity(ctx context.Context, db executor, key string) (*model.Entity, string, error) {
	row := db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM graph_entities WHERE key = $1`, key)
	return scanEntity(row)
}

func queryUpsertEntity(ctx context.Context, db executor, e *model.Entity) error {
	props, err := propertiesBytes(e.Properties)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", e.Key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO graph_entities (key, type, class, properties, hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (key) DO UPDATE SET
			type = EXCLUDED.type,
			class = EXCLUDED.class,
			properties = EXCLUDED.properties,
			hash = EXCLUDED.hash,
			updated_at = now()`,
		e.Key,
		e.Type,
		e.Class,
		props,
		e.Hash(),
	)
	return err
}

// queryDeleteEntity removes an entity and every relationship touching it.
// Deleting a missing key is not an error so that replays are harmless.
func queryDeleteEntity(ctx context.Context, db executor, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM graph_relationships WHERE from_key = $1 OR to_key = $1`, key); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `DELETE FROM graph_entities WHERE key = $1`, key)
	return err
}

func queryListEntities(ctx context.Context, db executor, entityType string) ([]*model.Entity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if entityType == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+entityColumns+` FROM graph_entities ORDER BY key`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+entityColumns+` FROM graph_entities WHERE type = $1 ORDER BY key`, entityType)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func queryGetRelationship(ctx context.Context, db executor, key string) (*model.Relationship, string, error) {
	row := db.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM graph_relationships WHERE key = $1`, key)
	return scanRelationship(row)
}

func queryUpsertRelationship(ctx context.Context, db executor, r *model.Relationship) error {
	props, err := propertiesBytes(r.Properties)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", r.Key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO graph_relationships (key, type, class, from_key, to_key, properties, hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (key) DO UPDATE SET
			type = EXCLUDED.type,
			class = EXCLUDED.class,
			from_key = EXCLUDED.from_key,
			to_key = EXCLUDED.to_key,
			properties = EXCLUDED.properties,
			hash = EXCLUDED.hash,
			updated_at = now()`,
		r.Key,
		r.Type,
		r.Class,
		r.FromKey,
		r.ToKey,
		props,
		r.Hash(),
	)
	return err
}

func queryDeleteRelationship(ctx context.Context, db executor, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM graph_relationships WHERE key = $1`, key)
	return err
}

func queryListRelationships(ctx context.Context, db executor, relType string) ([]*model.Relationship, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if relType == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM graph_relationships ORDER BY key`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM graph_relationships WHERE type = $1 ORDER BY key`, relType)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

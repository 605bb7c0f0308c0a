package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntity scans a single row into a model.Entity and its stored hash.
// The row must contain columns in the order defined by entityColumns.
func scanEntity(row scannable) (*model.Entity, string, error) {
	var (
		e     model.Entity
		props []byte
		hash  string
	)
	if err := row.Scan(&e.Key, &e.Type, &e.Class, &props, &hash); err != nil {
		return nil, "", err
	}
	if err := decodeProperties(props, &e.Properties); err != nil {
		return nil, "", err
	}
	return &e, hash, nil
}

// scanEntities scans multiple rows into a slice of model.Entity pointers.
func scanEntities(rows *sql.Rows) ([]*model.Entity, error) {
	var entities []*model.Entity
	for rows.Next() {
		e, _, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// scanRelationship scans a single row into a model.Relationship and its
// stored hash. The row must contain columns in the order defined by
// relationshipColumns.
func scanRelationship(row scannable) (*model.Relationship, string, error) {
	var (
		r     model.Relationship
		props []byte
		hash  string
	)
	if err := row.Scan(&r.Key, &r.Type, &r.Class, &r.FromKey, &r.ToKey, &props, &hash); err != nil {
		return nil, "", err
	}
	if err := decodeProperties(props, &r.Properties); err != nil {
		return nil, "", err
	}
	return &r, hash, nil
}

// scanRelationships scans multiple rows into a slice of model.Relationship pointers.
func scanRelationships(rows *sql.Rows) ([]*model.Relationship, error) {
	var rels []*model.Relationship
	for rows.Next() {
		r, _, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}

// scanCacheEntry scans a cache_entries row (key, data, fetched_at, cursor).
func scanCacheEntry(row scannable) (model.CacheEntry, error) {
	var (
		e      model.CacheEntry
		data   []byte
		cursor sql.NullString
	)
	if err := row.Scan(&e.Key, &data, &e.FetchedAt, &cursor); err != nil {
		return model.CacheEntry{}, err
	}
	e.Data = json.RawMessage(data)
	e.Cursor = cursor.String
	return e, nil
}

// propertiesBytes converts a property map to a []byte suitable for JSONB
// columns. An empty map is stored as NULL.
func propertiesBytes(props map[string]any) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return json.Marshal(props)
}

func decodeProperties(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

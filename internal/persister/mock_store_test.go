package persister

import (
	"context"
	"database/sql"
	"maps"
	"sort"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/store"
)

type storedEntity struct {
	entity *model.Entity
	hash   string
}

type storedRelationship struct {
	rel  *model.Relationship
	hash string
}

// mockStore is a minimal in-memory graph store. Transactions work on a
// copy that replaces the live maps only when fn succeeds.
type mockStore struct {
	entities map[string]storedEntity
	rels     map[string]storedRelationship

	failUpsertKey string
	upserts       int
}

func newMockStore() *mockStore {
	return &mockStore{
		entities: make(map[string]storedEntity),
		rels:     make(map[string]storedRelationship),
	}
}

func (m *mockStore) GetEntity(_ context.Context, key string) (*model.Entity, string, error) {
	s, ok := m.entities[key]
	if !ok {
		return nil, "", sql.ErrNoRows
	}
	return s.entity, s.hash, nil
}

func (m *mockStore) UpsertEntity(_ context.Context, e *model.Entity) error {
	if e.Key == m.failUpsertKey {
		return errUpsert
	}
	m.upserts++
	m.entities[e.Key] = storedEntity{entity: e, hash: e.Hash()}
	return nil
}

func (m *mockStore) DeleteEntity(_ context.Context, key string) error {
	delete(m.entities, key)
	return nil
}

func (m *mockStore) ListEntities(_ context.Context, typ string) ([]*model.Entity, error) {
	var out []*model.Entity
	for _, s := range m.entities {
		if typ == "" || s.entity.Type == typ {
			out = append(out, s.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *mockStore) GetRelationship(_ context.Context, key string) (*model.Relationship, string, error) {
	s, ok := m.rels[key]
	if !ok {
		return nil, "", sql.ErrNoRows
	}
	return s.rel, s.hash, nil
}

func (m *mockStore) UpsertRelationship(_ context.Context, r *model.Relationship) error {
	if r.Key == m.failUpsertKey {
		return errUpsert
	}
	m.upserts++
	m.rels[r.Key] = storedRelationship{rel: r, hash: r.Hash()}
	return nil
}

func (m *mockStore) DeleteRelationship(_ context.Context, key string) error {
	delete(m.rels, key)
	return nil
}

func (m *mockStore) ListRelationships(_ context.Context, typ string) ([]*model.Relationship, error) {
	var out []*model.Relationship
	for _, s := range m.rels {
		if typ == "" || s.rel.Type == typ {
			out = append(out, s.rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx := &mockStore{
		entities:      maps.Clone(m.entities),
		rels:          maps.Clone(m.rels),
		failUpsertKey: m.failUpsertKey,
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.entities, m.rels = tx.entities, tx.rels
	m.upserts += tx.upserts
	return nil
}

func (m *mockStore) Close() error { return nil }

package store

import (
	"context"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Store defines the persistence interface for the entity-relationship
// graph. It is the stored truth the persister reconciles against.
type Store interface {
	// Entities
	GetEntity(ctx context.Context, key string) (*model.Entity, string, error) // returns entity, stored hash, error
	UpsertEntity(ctx context.Context, entity *model.Entity) error
	DeleteEntity(ctx context.Context, key string) error
	ListEntities(ctx context.Context, entityType string) ([]*model.Entity, error) // empty type lists all

	// Relationships
	GetRelationship(ctx context.Context, key string) (*model.Relationship, string, error)
	UpsertRelationship(ctx context.Context, rel *model.Relationship) error
	DeleteRelationship(ctx context.Context, key string) error
	ListRelationships(ctx context.Context, relType string) ([]*model.Relationship, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

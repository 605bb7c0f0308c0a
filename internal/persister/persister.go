// Package persister turns snapshots of the graph into operations and
// applies them to the graph store.
package persister

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/store"
)

// Persister diffs old and new snapshots and publishes the result.
type Persister interface {
	ProcessEntities(old, new []*model.Entity) model.OperationSet
	ProcessRelationships(old, new []*model.Relationship) model.OperationSet
	Publish(ctx context.Context, sets ...model.OperationSet) (model.PublishResult, error)
	PublishSnapshot(ctx context.Context, scope model.Scope, sets ...model.OperationSet) (model.PublishResult, error)
	Summarize(result model.PublishResult) model.OperationSummary
}

// Diffing is a Persister backed by a store.Store. Publish reconciles every
// operation against the stored hash, so publishing the same set twice
// changes nothing the second time. PublishSnapshot also deletes what the
// snapshot no longer contains.
type Diffing struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Diffing persister.
func New(s store.Store, logger *slog.Logger) *Diffing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diffing{store: s, logger: logger}
}

var _ Persister = (*Diffing)(nil)

// ProcessEntities returns creates for keys only in new, updates for keys
// whose hash changed and deletes for keys only in old. Duplicate keys in
// new are collapsed to their first occurrence.
func (d *Diffing) ProcessEntities(old, new []*model.Entity) model.OperationSet {
	oldByKey := make(map[string]*model.Entity, len(old))
	for _, e := range old {
		oldByKey[e.Key] = e
	}

	var ops model.OperationSet
	seen := make(map[string]bool, len(new))
	for _, e := range new {
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		prev, ok := oldByKey[e.Key]
		switch {
		case !ok:
			ops = append(ops, &model.Operation{Action: model.ActionCreate, Type: e.Type, Entity: e})
		case prev.Hash() != e.Hash():
			ops = append(ops, &model.Operation{Action: model.ActionUpdate, Type: e.Type, Entity: e})
		}
	}
	for _, e := range old {
		if !seen[e.Key] {
			seen[e.Key] = true
			ops = append(ops, &model.Operation{Action: model.ActionDelete, Type: e.Type, Entity: e})
		}
	}
	return ops
}

// ProcessRelationships is ProcessEntities for relationships.
func (d *Diffing) ProcessRelationships(old, new []*model.Relationship) model.OperationSet {
	oldByKey := make(map[string]*model.Relationship, len(old))
	for _, r := range old {
		oldByKey[r.Key] = r
	}

	var ops model.OperationSet
	seen := make(map[string]bool, len(new))
	for _, r := range new {
		if seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		prev, ok := oldByKey[r.Key]
		switch {
		case !ok:
			ops = append(ops, &model.Operation{Action: model.ActionCreate, Type: r.Type, Relationship: r})
		case prev.Hash() != r.Hash():
			ops = append(ops, &model.Operation{Action: model.ActionUpdate, Type: r.Type, Relationship: r})
		}
	}
	for _, r := range old {
		if !seen[r.Key] {
			seen[r.Key] = true
			ops = append(ops, &model.Operation{Action: model.ActionDelete, Type: r.Type, Relationship: r})
		}
	}
	return ops
}

// Publish applies every set in a single transaction. Entity sets should
// come before the relationship sets that reference them. On error nothing
// is applied and the zero result is returned.
func (d *Diffing) Publish(ctx context.Context, sets ...model.OperationSet) (model.PublishResult, error) {
	return d.publish(ctx, nil, sets)
}

// PublishSnapshot is Publish for a complete snapshot of the types in
// scope. Stored entities and relationships of those types that no
// operation names are deleted in the same transaction.
func (d *Diffing) PublishSnapshot(ctx context.Context, scope model.Scope, sets ...model.OperationSet) (model.PublishResult, error) {
	return d.publish(ctx, &scope, sets)
}

func (d *Diffing) publish(ctx context.Context, scope *model.Scope, sets []model.OperationSet) (model.PublishResult, error) {
	var result model.PublishResult
	err := d.store.RunInTransaction(ctx, func(tx store.Store) error {
		result = model.PublishResult{}
		for _, set := range sets {
			for _, op := range set {
				applied, err := apply(ctx, tx, op)
				if err != nil {
					return fmt.Errorf("%s %s: %w", op.Action, op.Key(), err)
				}
				if applied == nil {
					result.Skipped++
					continue
				}
				result.Applied = append(result.Applied, applied)
			}
		}
		if scope == nil {
			return nil
		}
		stale, err := deleteStale(ctx, tx, *scope, sets)
		if err != nil {
			return err
		}
		result.Applied = append(result.Applied, stale...)
		return nil
	})
	if err != nil {
		return model.PublishResult{}, err
	}
	d.logger.Debug("published operations", "applied", len(result.Applied), "skipped", result.Skipped)
	return result, nil
}

// deleteStale removes stored rows of the scoped types that sets do not
// name. Relationships go first so none outlives its endpoints.
func deleteStale(ctx context.Context, tx store.Store, scope model.Scope, sets []model.OperationSet) ([]*model.Operation, error) {
	named := make(map[string]bool)
	for _, set := range sets {
		for _, op := range set {
			named[op.Key()] = true
		}
	}

	var deleted []*model.Operation
	for _, typ := range scope.RelationshipTypes {
		if typ == "" {
			continue
		}
		stored, err := tx.ListRelationships(ctx, typ)
		if err != nil {
			return nil, fmt.Errorf("list stored %s: %w", typ, err)
		}
		for _, r := range stored {
			if named[r.Key] {
				continue
			}
			if err := tx.DeleteRelationship(ctx, r.Key); err != nil {
				return nil, fmt.Errorf("delete stale %s: %w", r.Key, err)
			}
			deleted = append(deleted, &model.Operation{Action: model.ActionDelete, Type: typ, Relationship: r})
		}
	}
	for _, typ := range scope.EntityTypes {
		if typ == "" {
			continue
		}
		stored, err := tx.ListEntities(ctx, typ)
		if err != nil {
			return nil, fmt.Errorf("list stored %s: %w", typ, err)
		}
		for _, e := range stored {
			if named[e.Key] {
				continue
			}
			if err := tx.DeleteEntity(ctx, e.Key); err != nil {
				return nil, fmt.Errorf("delete stale %s: %w", e.Key, err)
			}
			deleted = append(deleted, &model.Operation{Action: model.ActionDelete, Type: typ, Entity: e})
		}
	}
	return deleted, nil
}

// Summarize counts applied operations by type and action.
func (d *Diffing) Summarize(result model.PublishResult) model.OperationSummary {
	summary := model.NewOperationSummary()
	for _, op := range result.Applied {
		summary.Add(op.Type, op.Action)
	}
	summary.Unchanged = result.Skipped
	return summary
}

// apply executes op against the stored state and returns the operation as
// actually applied, or nil when the store already matched.
func apply(ctx context.Context, tx store.Store, op *model.Operation) (*model.Operation, error) {
	if !op.Action.IsValid() {
		return nil, fmt.Errorf("invalid action %q", op.Action)
	}
	switch {
	case op.Entity != nil:
		return applyEntity(ctx, tx, op)
	case op.Relationship != nil:
		return applyRelationship(ctx, tx, op)
	}
	return nil, errors.New("operation has no target")
}

func applyEntity(ctx context.Context, tx store.Store, op *model.Operation) (*model.Operation, error) {
	e := op.Entity
	_, storedHash, err := tx.GetEntity(ctx, e.Key)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if op.Action == model.ActionDelete {
		if !exists {
			return nil, nil
		}
		return op, tx.DeleteEntity(ctx, e.Key)
	}
	if exists && storedHash == e.Hash() {
		return nil, nil
	}
	if err := tx.UpsertEntity(ctx, e); err != nil {
		return nil, err
	}
	return &model.Operation{Action: upsertAction(exists), Type: op.Type, Entity: e}, nil
}

func applyRelationship(ctx context.Context, tx store.Store, op *model.Operation) (*model.Operation, error) {
	r := op.Relationship
	_, storedHash, err := tx.GetRelationship(ctx, r.Key)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if op.Action == model.ActionDelete {
		if !exists {
			return nil, nil
		}
		return op, tx.DeleteRelationship(ctx, r.Key)
	}
	if exists && storedHash == r.Hash() {
		return nil, nil
	}
	if err := tx.UpsertRelationship(ctx, r); err != nil {
		return nil, err
	}
	return &model.Operation{Action: upsertAction(exists), Type: op.Type, Relationship: r}, nil
}

func upsertAction(exists bool) model.Action {
	if exists {
		return model.ActionUpdate
	}
	return model.ActionCreate
}

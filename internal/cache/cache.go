// Package cache defines the resource cache shared by the fetch and
// synchronize phases, and the completion gate that guards synchronize.
package cache

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Visitor is called once per cached entry. Returning an error stops the
// iteration and the error is returned from ForEach.
type Visitor func(entry model.CacheEntry) error

// Cache stores fetched resources per collection together with the
// collection's fetch state.
type Cache interface {
	// GetState returns the fetch state of collection, or nil when the
	// collection has never been fetched.
	GetState(ctx context.Context, collection string) (*model.CacheState, error)
	// SetState records a new fetch state. Only the fetch phase calls it.
	SetState(ctx context.Context, collection string, state model.FetchState) error

	// Put appends entries to collection.
	Put(ctx context.Context, collection string, entries ...model.CacheEntry) error
	// ForEach visits every entry of collection in insertion order.
	ForEach(ctx context.Context, collection string, visit Visitor) error
	// Clear removes all entries and the state of collection.
	Clear(ctx context.Context, collection string) error

	Close() error
}

// RequireCompleted returns an incomplete-fetch error unless the fetch
// phase recorded completion for collection.
func RequireCompleted(ctx context.Context, c Cache, collection string) error {
	state, err := c.GetState(ctx, collection)
	if err != nil {
		return fmt.Errorf("get %s cache state: %w", collection, err)
	}
	if !state.ResourceFetchCompleted() {
		return model.IncompleteFetchError(collection)
	}
	return nil
}

// Transition moves collection to next, rejecting moves the state machine
// does not allow (e.g. completing a fetch that never started).
func Transition(ctx context.Context, c Cache, collection string, next model.FetchState) error {
	state, err := c.GetState(ctx, collection)
	if err != nil {
		return fmt.Errorf("get %s cache state: %w", collection, err)
	}
	current := model.FetchNotStarted
	if state != nil {
		current = state.State
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("invalid %s state transition %s -> %s", collection, current, next)
	}
	return c.SetState(ctx, collection, next)
}

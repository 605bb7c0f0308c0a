package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Event topic constants
const (
	TopicFetchCompleted  = "graphsync.fetch.completed"
	TopicSyncCompleted   = "graphsync.sync.completed"
	TopicSyncFailed      = "graphsync.sync.failed"
	TopicActionCompleted = "graphsync.action.completed"

	// TopicAll matches every graphsync event.
	TopicAll = "graphsync.>"
)

// Event types

type FetchCompleted struct {
	RunID      string `json:"run_id"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

type SyncCompleted struct {
	RunID      string                 `json:"run_id"`
	Collection string                 `json:"collection"`
	Summary    model.OperationSummary `json:"summary"`
	Duration   time.Duration          `json:"duration"`
}

type SyncFailed struct {
	RunID      string          `json:"run_id"`
	Collection string          `json:"collection"`
	Kind       model.ErrorKind `json:"kind,omitempty"`
	Error      string          `json:"error"`
}

type ActionCompleted struct {
	Action  string                 `json:"action"`
	Summary model.OperationSummary `json:"summary"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

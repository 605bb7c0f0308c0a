// Package action executes one-off actions requested by a caller, outside
// the fetch and synchronize cycle.
package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/graphsync/internal/convert"
	"github.com/alfredjeanlab/graphsync/internal/events"
	"github.com/alfredjeanlab/graphsync/internal/idgen"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/persister"
	"github.com/alfredjeanlab/graphsync/internal/provider"
)

// Action names.
const (
	CreateEntity = "CREATE_ENTITY"

	// ResultIngest names the result of an action that ingested resources.
	ResultIngest = "INGEST"
)

// Action is a request to act against the provider.
type Action struct {
	Name       string           `json:"name"`
	Class      string           `json:"class,omitempty"`
	Properties ActionProperties `json:"properties"`
}

// ActionProperties carries the fields of the resource to create.
type ActionProperties struct {
	Project     string `json:"project"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	IssueType   string `json:"issueType"`
}

// IngestResult lists the resources an action ingested.
type IngestResult struct {
	Name   string         `json:"name"`
	Issues []*model.Issue `json:"issues"`
}

// Result is the outcome of an action. Both fields are nil for unknown
// actions.
type Result struct {
	ID           string                  `json:"id,omitempty"`
	Operations   *model.OperationSummary `json:"operations,omitempty"`
	ActionResult *IngestResult           `json:"action_result,omitempty"`
}

// HandlerFunc executes one action.
type HandlerFunc func(ctx context.Context, a *Action) (Result, error)

// Dispatcher maps action names to handlers.
type Dispatcher struct {
	client    provider.Client
	persister persister.Persister
	publisher events.Publisher
	logger    *slog.Logger
	handlers  map[string]HandlerFunc
}

// NewDispatcher creates a dispatcher with the built-in handlers registered.
// publisher may be nil.
func NewDispatcher(client provider.Client, p persister.Persister, publisher events.Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	d := &Dispatcher{
		client:    client,
		persister: p,
		publisher: publisher,
		logger:    logger,
	}
	d.handlers = map[string]HandlerFunc{
		CreateEntity: d.createIssue,
	}
	return d
}

// Execute runs the handler registered for a.Name. An unknown action
// returns an empty result and no error.
func (d *Dispatcher) Execute(ctx context.Context, a *Action) (Result, error) {
	h, ok := d.handlers[a.Name]
	if !ok {
		d.logger.Info("ignoring unknown action", "action", a.Name)
		return Result{}, nil
	}

	id, err := idgen.ActionID()
	if err != nil {
		return Result{}, fmt.Errorf("generate action id: %w", err)
	}
	logger := d.logger.With("action", a.Name, "action_id", id)

	result, err := h(ctx, a)
	if err != nil {
		logger.Error("action failed", "err", err)
		return Result{}, err
	}
	result.ID = id

	var summary model.OperationSummary
	if result.Operations != nil {
		summary = *result.Operations
	}
	if err := d.publisher.Publish(ctx, events.TopicActionCompleted, events.ActionCompleted{
		Action:  a.Name,
		Summary: summary,
	}); err != nil {
		logger.Warn("event publish failed", "err", err)
	}
	logger.Info("action completed", "applied", summary.Total())
	return result, nil
}

// createIssue creates an issue and persists it together with its project,
// creator and reporter relationships.
func (d *Dispatcher) createIssue(ctx context.Context, a *Action) (Result, error) {
	issue, err := d.client.CreateIssue(ctx, &provider.CreateIssueRequest{
		Project:     a.Properties.Project,
		Summary:     a.Properties.Summary,
		Description: a.Properties.Description,
		IssueType:   a.Properties.IssueType,
		Class:       a.Class,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create issue: %w", err)
	}

	var (
		issues   []*model.Issue
		entities []*model.Entity
		rels     []*model.Relationship
	)
	if issue != nil {
		issues = append(issues, issue)
		entities = append(entities, convert.IssueEntity(issue, convert.LookupContext{RequestedClass: a.Class}))
		if r, ok := convert.ProjectIssueRelationship(issue.Fields.Project, issue); ok {
			rels = append(rels, r)
		}
		if r, ok := convert.UserCreatedIssueRelationship(issue.Fields.Creator, issue); ok {
			rels = append(rels, r)
		}
		if r, ok := convert.UserReportedIssueRelationship(issue.Fields.Reporter, issue); ok {
			rels = append(rels, r)
		}
	}

	published, err := d.persister.Publish(ctx,
		d.persister.ProcessEntities(nil, entities),
		d.persister.ProcessRelationships(nil, rels),
	)
	if err != nil {
		return Result{}, model.PublishError(model.CollectionIssues, err)
	}
	summary := d.persister.Summarize(published)

	return Result{
		Operations:   &summary,
		ActionResult: &IngestResult{Name: ResultIngest, Issues: issues},
	}, nil
}

package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/graphsync/internal/events"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/persister"
	"github.com/alfredjeanlab/graphsync/internal/provider/providertest"
)

// fakePersister applies every operation it is given.
type fakePersister struct {
	diff       *persister.Diffing
	publishErr error
	sets       []model.OperationSet
	summarized bool
}

func newFakePersister() *fakePersister {
	return &fakePersister{diff: persister.New(nil, nil)}
}

func (p *fakePersister) ProcessEntities(old, new []*model.Entity) model.OperationSet {
	return p.diff.ProcessEntities(old, new)
}

func (p *fakePersister) ProcessRelationships(old, new []*model.Relationship) model.OperationSet {
	return p.diff.ProcessRelationships(old, new)
}

func (p *fakePersister) Publish(_ context.Context, sets ...model.OperationSet) (model.PublishResult, error) {
	p.sets = sets
	if p.publishErr != nil {
		return model.PublishResult{}, p.publishErr
	}
	var result model.PublishResult
	for _, set := range sets {
		result.Applied = append(result.Applied, set...)
	}
	return result, nil
}

func (p *fakePersister) PublishSnapshot(ctx context.Context, _ model.Scope, sets ...model.OperationSet) (model.PublishResult, error) {
	return p.Publish(ctx, sets...)
}

func (p *fakePersister) Summarize(result model.PublishResult) model.OperationSummary {
	p.summarized = true
	return p.diff.Summarize(result)
}

type recordingPublisher struct {
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func createAction() *Action {
	return &Action{
		Name:  CreateEntity,
		Class: "Vulnerability",
		Properties: ActionProperties{
			Project:   "AAA",
			Summary:   "SQL injection in login",
			IssueType: "Bug",
		},
	}
}

func TestExecute_CreateEntity(t *testing.T) {
	client := &providertest.Fake{}
	p := newFakePersister()
	pub := &recordingPublisher{}
	d := NewDispatcher(client, p, pub, nil)

	result, err := d.Execute(context.Background(), createAction())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(client.Created) != 1 {
		t.Fatalf("created %d issues, want 1", len(client.Created))
	}
	req := client.Created[0]
	if req.Project != "AAA" || req.Summary != "SQL injection in login" || req.IssueType != "Bug" || req.Class != "Vulnerability" {
		t.Errorf("request = %+v", req)
	}

	if !strings.HasPrefix(result.ID, "act-") {
		t.Errorf("result id = %q", result.ID)
	}
	if result.ActionResult == nil || result.ActionResult.Name != ResultIngest || len(result.ActionResult.Issues) != 1 {
		t.Fatalf("action result = %+v", result.ActionResult)
	}

	if len(p.sets) != 2 || len(p.sets[0]) != 1 {
		t.Fatalf("published sets = %v", p.sets)
	}
	e := p.sets[0][0].Entity
	if e.Class != "Vulnerability" || e.Key != model.EntityKey(model.EntityTypeIssue, "9001") {
		t.Errorf("entity = %s %s", e.Key, e.Class)
	}
	// The fake sets a project and creator but no reporter.
	if got := len(p.sets[1]); got != 2 {
		t.Errorf("relationship operations = %d, want 2", got)
	}

	ops := result.Operations
	if ops == nil || ops.Count(model.EntityTypeIssue, model.ActionCreate) != 1 || ops.Total() != 3 {
		t.Errorf("operations = %+v", ops)
	}

	if len(pub.topics) != 1 || pub.topics[0] != events.TopicActionCompleted {
		t.Fatalf("topics = %v", pub.topics)
	}
	if ev := pub.events[0].(events.ActionCompleted); ev.Action != CreateEntity || ev.Summary.Total() != 3 {
		t.Errorf("event = %+v", ev)
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	client := &providertest.Fake{}
	p := newFakePersister()
	pub := &recordingPublisher{}
	d := NewDispatcher(client, p, pub, nil)

	result, err := d.Execute(context.Background(), &Action{Name: "DELETE_ENTITY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Operations != nil || result.ActionResult != nil || result.ID != "" {
		t.Errorf("expected empty result, got %+v", result)
	}
	if client.CallCount("CreateIssue") != 0 || p.sets != nil || len(pub.topics) != 0 {
		t.Error("unknown action had side effects")
	}
}

func TestExecute_ProviderError(t *testing.T) {
	boom := errors.New("forbidden")
	p := newFakePersister()
	d := NewDispatcher(&providertest.Fake{Err: boom}, p, nil, nil)

	_, err := d.Execute(context.Background(), createAction())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if p.sets != nil {
		t.Error("nothing should be published when the provider fails")
	}
}

func TestExecute_PublishError(t *testing.T) {
	p := newFakePersister()
	p.publishErr = errors.New("tx aborted")
	pub := &recordingPublisher{}
	d := NewDispatcher(&providertest.Fake{}, p, pub, nil)

	_, err := d.Execute(context.Background(), createAction())
	if !model.IsKind(err, model.KindPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if p.summarized {
		t.Error("Summarize called after a failed publish")
	}
	if len(pub.topics) != 0 {
		t.Error("completion event published for a failed action")
	}
}

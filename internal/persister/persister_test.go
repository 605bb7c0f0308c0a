package persister

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

var errUpsert = errors.New("upsert failed")

func entity(id string, props map[string]any) *model.Entity {
	return &model.Entity{
		Key:        model.EntityKey(model.EntityTypeIssue, id),
		Type:       model.EntityTypeIssue,
		Class:      model.ClassIssue,
		Properties: props,
	}
}

func rel(from, to string) *model.Relationship {
	f := model.EntityKey(model.EntityTypeUser, from)
	t := model.EntityKey(model.EntityTypeIssue, to)
	return &model.Relationship{
		Key:     model.RelationshipKey(f, model.RelReported, t),
		Type:    model.RelationshipType(model.EntityTypeUser, model.RelReported, model.EntityTypeIssue),
		Class:   model.RelReported,
		FromKey: f,
		ToKey:   t,
	}
}

func TestProcessEntities(t *testing.T) {
	p := New(newMockStore(), nil)

	old := []*model.Entity{
		entity("1", map[string]any{"summary": "a"}),
		entity("2", map[string]any{"summary": "b"}),
		entity("3", map[string]any{"summary": "c"}),
	}
	next := []*model.Entity{
		entity("1", map[string]any{"summary": "a"}),
		entity("2", map[string]any{"summary": "changed"}),
		entity("4", map[string]any{"summary": "d"}),
		entity("4", map[string]any{"summary": "dup"}),
	}

	ops := p.ProcessEntities(old, next)

	want := []struct {
		action model.Action
		key    string
	}{
		{model.ActionUpdate, "jira_issue:2"},
		{model.ActionCreate, "jira_issue:4"},
		{model.ActionDelete, "jira_issue:3"},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d", len(ops), len(want))
	}
	for i, w := range want {
		if ops[i].Action != w.action || ops[i].Key() != w.key {
			t.Errorf("op %d = %s %s, want %s %s", i, ops[i].Action, ops[i].Key(), w.action, w.key)
		}
	}
}

func TestProcessEntities_EmptyOldIsAllCreates(t *testing.T) {
	p := New(newMockStore(), nil)
	ops := p.ProcessEntities(nil, []*model.Entity{entity("1", nil), entity("2", nil)})
	if ops.Count(model.ActionCreate) != 2 || len(ops) != 2 {
		t.Errorf("ops = %d creates of %d", ops.Count(model.ActionCreate), len(ops))
	}
}

func TestProcessRelationships(t *testing.T) {
	p := New(newMockStore(), nil)
	ops := p.ProcessRelationships(
		[]*model.Relationship{rel("u1", "1"), rel("u2", "2")},
		[]*model.Relationship{rel("u1", "1"), rel("u3", "3")},
	)
	if ops.Count(model.ActionCreate) != 1 || ops.Count(model.ActionDelete) != 1 || len(ops) != 2 {
		t.Errorf("unexpected ops: %d create %d delete of %d",
			ops.Count(model.ActionCreate), ops.Count(model.ActionDelete), len(ops))
	}
}

func TestPublish_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	entities := p.ProcessEntities(nil, []*model.Entity{entity("1", nil), entity("2", nil)})
	rels := p.ProcessRelationships(nil, []*model.Relationship{rel("u1", "1")})

	first, err := p.Publish(ctx, entities, rels)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	summary := p.Summarize(first)
	if summary.Count(model.EntityTypeIssue, model.ActionCreate) != 2 {
		t.Errorf("first run created %d issues", summary.Count(model.EntityTypeIssue, model.ActionCreate))
	}
	if summary.Total() != 3 {
		t.Errorf("first run applied %d, want 3", summary.Total())
	}

	second, err := p.Publish(ctx, entities, rels)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(second.Applied) != 0 || second.Skipped != 3 {
		t.Errorf("replay applied %d skipped %d, want 0/3", len(second.Applied), second.Skipped)
	}
	if got := p.Summarize(second).Unchanged; got != 3 {
		t.Errorf("unchanged = %d", got)
	}
}

func TestPublish_ChangedEntityBecomesUpdate(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	if _, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{entity("1", map[string]any{"v": 1})})); err != nil {
		t.Fatal(err)
	}
	res, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{entity("1", map[string]any{"v": 2})}))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 || res.Applied[0].Action != model.ActionUpdate {
		t.Fatalf("applied = %+v", res.Applied)
	}
}

func TestPublish_DeleteMissingIsSkipped(t *testing.T) {
	p := New(newMockStore(), nil)
	ops := p.ProcessEntities([]*model.Entity{entity("gone", nil)}, nil)
	res, err := p.Publish(context.Background(), ops)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 0 || res.Skipped != 1 {
		t.Errorf("applied %d skipped %d", len(res.Applied), res.Skipped)
	}
}

func TestPublish_FailureRollsBack(t *testing.T) {
	st := newMockStore()
	st.failUpsertKey = "jira_issue:2"
	p := New(st, nil)

	ops := p.ProcessEntities(nil, []*model.Entity{entity("1", nil), entity("2", nil)})
	res, err := p.Publish(context.Background(), ops)
	if !errors.Is(err, errUpsert) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if len(res.Applied) != 0 {
		t.Errorf("failed publish should report nothing applied")
	}
	if len(st.entities) != 0 {
		t.Errorf("store should be unchanged, has %d entities", len(st.entities))
	}
}

var issueScope = model.Scope{
	EntityTypes:       []string{model.EntityTypeIssue},
	RelationshipTypes: []string{model.RelationshipType(model.EntityTypeUser, model.RelReported, model.EntityTypeIssue)},
}

func TestPublishSnapshot_DeletesStaleRows(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	_, err := p.PublishSnapshot(ctx, issueScope,
		p.ProcessEntities(nil, []*model.Entity{entity("1", nil), entity("2", nil)}),
		p.ProcessRelationships(nil, []*model.Relationship{rel("u1", "1"), rel("u2", "2")}),
	)
	if err != nil {
		t.Fatalf("PublishSnapshot: %v", err)
	}

	res, err := p.PublishSnapshot(ctx, issueScope,
		p.ProcessEntities(nil, []*model.Entity{entity("1", nil)}),
		p.ProcessRelationships(nil, []*model.Relationship{rel("u1", "1")}),
	)
	if err != nil {
		t.Fatalf("PublishSnapshot: %v", err)
	}

	if _, ok := st.entities["jira_issue:2"]; ok {
		t.Error("jira_issue:2 still stored after a snapshot without it")
	}
	if len(st.entities) != 1 || len(st.rels) != 1 {
		t.Errorf("stored %d entities and %d relationships, want 1 and 1", len(st.entities), len(st.rels))
	}
	summary := p.Summarize(res)
	if got := summary.Count(model.EntityTypeIssue, model.ActionDelete); got != 1 {
		t.Errorf("entity deletes = %d, want 1", got)
	}
	relType := model.RelationshipType(model.EntityTypeUser, model.RelReported, model.EntityTypeIssue)
	if got := summary.Count(relType, model.ActionDelete); got != 1 {
		t.Errorf("relationship deletes = %d, want 1", got)
	}
	if summary.Unchanged != 2 {
		t.Errorf("unchanged = %d, want 2", summary.Unchanged)
	}
	// The relationship is removed before the entity it points at.
	if res.Applied[0].Relationship == nil || res.Applied[1].Entity == nil {
		t.Errorf("delete order = %s, %s", res.Applied[0].Key(), res.Applied[1].Key())
	}
}

func TestPublishSnapshot_EmptySnapshotClearsScope(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	if _, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{entity("1", nil)})); err != nil {
		t.Fatal(err)
	}
	res, err := p.PublishSnapshot(ctx, issueScope)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.entities) != 0 || len(res.Applied) != 1 {
		t.Errorf("stored %d, applied %d, want 0 and 1", len(st.entities), len(res.Applied))
	}
}

func TestPublishSnapshot_LeavesOtherTypes(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	team := &model.Entity{Key: model.EntityKey(model.EntityTypeTeam, "7"), Type: model.EntityTypeTeam, Class: model.ClassTeam}
	if _, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{team})); err != nil {
		t.Fatal(err)
	}
	if _, err := p.PublishSnapshot(ctx, issueScope, p.ProcessEntities(nil, []*model.Entity{entity("1", nil)})); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.entities[team.Key]; !ok {
		t.Error("snapshot of issues deleted a team")
	}
}

func TestPublish_KeepsRowsOutsideTheSets(t *testing.T) {
	ctx := context.Background()
	st := newMockStore()
	p := New(st, nil)

	if _, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{entity("1", nil), entity("2", nil)})); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(ctx, p.ProcessEntities(nil, []*model.Entity{entity("3", nil)})); err != nil {
		t.Fatal(err)
	}
	if len(st.entities) != 3 {
		t.Errorf("stored %d entities, want 3", len(st.entities))
	}
}

func TestSummarize(t *testing.T) {
	p := New(newMockStore(), nil)
	s := p.Summarize(model.PublishResult{
		Applied: []*model.Operation{
			{Action: model.ActionCreate, Type: "a"},
			{Action: model.ActionCreate, Type: "a"},
			{Action: model.ActionDelete, Type: "b"},
		},
		Skipped: 4,
	})
	if s.Count("a", model.ActionCreate) != 2 || s.Count("b", model.ActionDelete) != 1 || s.Unchanged != 4 {
		t.Errorf("summary = %+v", s)
	}
}

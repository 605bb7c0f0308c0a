package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/graphsync/internal/cache"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/provider"
	"github.com/alfredjeanlab/graphsync/internal/provider/providertest"
)

func issues(ids ...string) []*model.Issue {
	var out []*model.Issue
	for _, id := range ids {
		out = append(out, &model.Issue{ID: id, Key: "AAA-" + id})
	}
	return out
}

func cachedKeys(t *testing.T, c cache.Cache, collection string) []string {
	t.Helper()
	var keys []string
	err := c.ForEach(context.Background(), collection, func(e model.CacheEntry) error {
		keys = append(keys, e.Key)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach %s: %v", collection, err)
	}
	return keys
}

func TestFetchIssues(t *testing.T) {
	ctx := context.Background()
	client := &providertest.Fake{Issues: issues("1", "2", "3"), PageSize: 2}
	c := cache.NewMemory()

	n, err := New(client, c, []string{"AAA"}, nil).FetchIssues(ctx)
	if err != nil {
		t.Fatalf("FetchIssues: %v", err)
	}
	if n != 3 {
		t.Errorf("fetched %d, want 3", n)
	}
	if got := client.CallCount("ListIssues"); got != 2 {
		t.Errorf("ListIssues called %d times, want 2", got)
	}
	if client.JQL[0] != `project = "AAA" ORDER BY created ASC` {
		t.Errorf("jql = %s", client.JQL[0])
	}
	if err := cache.RequireCompleted(ctx, c, model.CollectionIssues); err != nil {
		t.Errorf("issues should be completed: %v", err)
	}

	var cursors []string
	_ = c.ForEach(ctx, model.CollectionIssues, func(e model.CacheEntry) error {
		cursors = append(cursors, e.Cursor)
		var issue model.Issue
		if err := e.Decode(&issue); err != nil || issue.ID != e.Key {
			t.Errorf("entry %s decoded to %+v (%v)", e.Key, issue, err)
		}
		return nil
	})
	if len(cursors) != 3 || cursors[0] != "" || cursors[2] != "2" {
		t.Errorf("cursors = %q", cursors)
	}
}

func TestFetchIssues_ReplacesPreviousFetch(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	f := New(&providertest.Fake{Issues: issues("1", "2")}, c, []string{"AAA"}, nil)
	if _, err := f.FetchIssues(ctx); err != nil {
		t.Fatal(err)
	}

	f.client = &providertest.Fake{Issues: issues("3")}
	if _, err := f.FetchIssues(ctx); err != nil {
		t.Fatal(err)
	}
	if keys := cachedKeys(t, c, model.CollectionIssues); len(keys) != 1 || keys[0] != "3" {
		t.Errorf("keys = %v", keys)
	}
}

func TestFetchIssues_FailureLeavesFetching(t *testing.T) {
	ctx := context.Background()
	client := &providertest.Fake{Issues: issues("1", "2", "3"), PageSize: 1, FailIssuePage: "2"}
	c := cache.NewMemory()

	_, err := New(client, c, []string{"AAA"}, nil).FetchIssues(ctx)
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected provider error, got %v", err)
	}

	state, _ := c.GetState(ctx, model.CollectionIssues)
	if state == nil || state.State != model.FetchFetching {
		t.Fatalf("state = %+v, want fetching", state)
	}
	if err := cache.RequireCompleted(ctx, c, model.CollectionIssues); !model.IsKind(err, model.KindIncompleteFetch) {
		t.Errorf("synchronize should be refused, got %v", err)
	}
}

func TestFetchDirectory(t *testing.T) {
	ctx := context.Background()
	client := &providertest.Fake{
		Members: []*model.Member{{ID: "u1"}, {ID: "u2"}},
		Teams:   []*model.Team{{ID: "1"}, {ID: "2"}},
		TeamMembers: map[string][]*model.TeamMember{
			"1": {{ID: "u1", Teams: "1"}},
			"2": {{ID: "u2", Teams: "2"}},
		},
		TeamRepos: map[string][]*model.TeamRepo{
			"1": {{ID: "r1", Teams: "1"}},
		},
		Repos: []*model.Repo{{ID: "r1"}},
	}
	c := cache.NewMemory()

	counts, err := New(client, c, nil, nil).FetchDirectory(ctx)
	if err != nil {
		t.Fatalf("FetchDirectory: %v", err)
	}
	want := map[string]int{
		model.CollectionMembers:     2,
		model.CollectionTeams:       2,
		model.CollectionTeamMembers: 2,
		model.CollectionTeamRepos:   1,
		model.CollectionRepos:       1,
	}
	for coll, n := range want {
		if counts[coll] != n {
			t.Errorf("%s count = %d, want %d", coll, counts[coll], n)
		}
		if err := cache.RequireCompleted(ctx, c, coll); err != nil {
			t.Errorf("%s not completed: %v", coll, err)
		}
	}
	if keys := cachedKeys(t, c, model.CollectionTeamMembers); keys[0] != "1/u1" || keys[1] != "2/u2" {
		t.Errorf("team member keys = %v", keys)
	}
}

func TestFetchDirectory_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	client := &providertest.Fake{Err: errors.New("network down")}
	c := cache.NewMemory()

	if _, err := New(client, c, nil, nil).FetchDirectory(ctx); err == nil {
		t.Fatal("expected error")
	}
	state, _ := c.GetState(ctx, model.CollectionMembers)
	if state == nil || state.State != model.FetchFetching {
		t.Errorf("members state = %+v", state)
	}
	if state, _ := c.GetState(ctx, model.CollectionTeams); state != nil {
		t.Errorf("teams should not have started, state = %+v", state)
	}
}

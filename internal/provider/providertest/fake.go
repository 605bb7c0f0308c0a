// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"strconv"
	"sync"

	"github.com/alfredjeanlab/graphsync/internal/iterate"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/provider"
)

// Fake serves fixed resources in pages of PageSize items. Err, when set,
// is returned by every call. Calls counts invocations by method name.
type Fake struct {
	Projects    []*model.Project
	Fields      []*model.Field
	Issues      []*model.Issue
	Account     *model.Account
	Members     []*model.Member
	Teams       []*model.Team
	TeamMembers map[string][]*model.TeamMember
	TeamRepos   map[string][]*model.TeamRepo
	Repos       []*model.Repo
	Permissions *model.Permissions

	PageSize int
	Err      error
	// FailIssuePage makes ListIssues fail on the page with this token.
	FailIssuePage string

	mu      sync.Mutex
	Calls   map[string]int
	Created []*provider.CreateIssueRequest
	JQL     []string
}

var _ provider.Client = (*Fake)(nil)

func (f *Fake) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[name]++
	return f.Err
}

// CallCount returns how many times method was called.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) FetchProjects(context.Context) ([]*model.Project, error) {
	if err := f.record("FetchProjects"); err != nil {
		return nil, err
	}
	return f.Projects, nil
}

func (f *Fake) FetchFields(context.Context) ([]*model.Field, error) {
	if err := f.record("FetchFields"); err != nil {
		return nil, err
	}
	return f.Fields, nil
}

func (f *Fake) ListIssues(_ context.Context, jql, token string) (iterate.Page[*model.Issue], error) {
	if err := f.record("ListIssues"); err != nil {
		return iterate.Page[*model.Issue]{}, err
	}
	f.mu.Lock()
	f.JQL = append(f.JQL, jql)
	f.mu.Unlock()
	if f.FailIssuePage != "" && token == f.FailIssuePage {
		return iterate.Page[*model.Issue]{}, &provider.APIError{StatusCode: 500, Message: "page failed"}
	}
	return page(f.Issues, token, f.PageSize)
}

func (f *Fake) CreateIssue(_ context.Context, req *provider.CreateIssueRequest) (*model.Issue, error) {
	if err := f.record("CreateIssue"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	n := len(f.Created)
	return &model.Issue{
		ID:  strconv.Itoa(9000 + n),
		Key: req.Project + "-" + strconv.Itoa(n),
		Fields: model.IssueFields{
			Summary:   req.Summary,
			IssueType: &model.NamedValue{Name: req.IssueType},
			Project:   &model.Project{ID: "p-" + req.Project, Key: req.Project},
			Creator:   &model.User{AccountID: "bot"},
		},
	}, nil
}

func (f *Fake) GetAccount(context.Context) (*model.Account, error) {
	if err := f.record("GetAccount"); err != nil {
		return nil, err
	}
	return f.Account, nil
}

func (f *Fake) ListMembers(_ context.Context, token string) (iterate.Page[*model.Member], error) {
	if err := f.record("ListMembers"); err != nil {
		return iterate.Page[*model.Member]{}, err
	}
	return page(f.Members, token, f.PageSize)
}

func (f *Fake) ListTeams(_ context.Context, token string) (iterate.Page[*model.Team], error) {
	if err := f.record("ListTeams"); err != nil {
		return iterate.Page[*model.Team]{}, err
	}
	return page(f.Teams, token, f.PageSize)
}

func (f *Fake) ListTeamMembers(_ context.Context, teamID, token string) (iterate.Page[*model.TeamMember], error) {
	if err := f.record("ListTeamMembers"); err != nil {
		return iterate.Page[*model.TeamMember]{}, err
	}
	return page(f.TeamMembers[teamID], token, f.PageSize)
}

func (f *Fake) ListTeamRepos(_ context.Context, teamID, token string) (iterate.Page[*model.TeamRepo], error) {
	if err := f.record("ListTeamRepos"); err != nil {
		return iterate.Page[*model.TeamRepo]{}, err
	}
	return page(f.TeamRepos[teamID], token, f.PageSize)
}

func (f *Fake) ListRepos(_ context.Context, token string) (iterate.Page[*model.Repo], error) {
	if err := f.record("ListRepos"); err != nil {
		return iterate.Page[*model.Repo]{}, err
	}
	return page(f.Repos, token, f.PageSize)
}

func (f *Fake) GetPermissions(context.Context) (*model.Permissions, error) {
	if err := f.record("GetPermissions"); err != nil {
		return nil, err
	}
	return f.Permissions, nil
}

// page slices items into pages of size n, using the offset as the token.
func page[T any](items []T, token string, n int) (iterate.Page[T], error) {
	if n <= 0 {
		n = len(items)
		if n == 0 {
			n = 1
		}
	}
	start := 0
	if token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil {
			return iterate.Page[T]{}, err
		}
	}
	end := min(start+n, len(items))
	if start > end {
		start = end
	}
	p := iterate.Page[T]{Items: items[start:end]}
	if end < len(items) {
		p.Next = strconv.Itoa(end)
	}
	return p, nil
}

// Package provider talks to the third-party APIs the pipeline ingests: an
// issue tracker and an organization directory. Both are HTTP/JSON.
package provider

import (
	"context"

	"github.com/alfredjeanlab/graphsync/internal/iterate"
	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Client is the interface the fetch, verify and action code use to reach
// the provider. It is implemented by HTTPClient.
type Client interface {
	// Issue tracker
	FetchProjects(ctx context.Context) ([]*model.Project, error)
	FetchFields(ctx context.Context) ([]*model.Field, error)
	ListIssues(ctx context.Context, jql, token string) (iterate.Page[*model.Issue], error)
	CreateIssue(ctx context.Context, req *CreateIssueRequest) (*model.Issue, error)

	// Organization directory
	GetAccount(ctx context.Context) (*model.Account, error)
	ListMembers(ctx context.Context, token string) (iterate.Page[*model.Member], error)
	ListTeams(ctx context.Context, token string) (iterate.Page[*model.Team], error)
	ListTeamMembers(ctx context.Context, teamID, token string) (iterate.Page[*model.TeamMember], error)
	ListTeamRepos(ctx context.Context, teamID, token string) (iterate.Page[*model.TeamRepo], error)
	ListRepos(ctx context.Context, token string) (iterate.Page[*model.Repo], error)
	GetPermissions(ctx context.Context) (*model.Permissions, error)
}

// CreateIssueRequest holds the fields for creating an issue.
type CreateIssueRequest struct {
	Project     string `json:"project"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	IssueType   string `json:"issue_type"`
	// Class is the entity class requested by the caller. It is not sent to
	// the tracker.
	Class string `json:"class,omitempty"`
}

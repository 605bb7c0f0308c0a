// Package synchronize is the second phase of a run: it replays cached
// collections, converts them into graph entities and relationships, and
// publishes the difference through a persister.
package synchronize

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/alfredjeanlab/graphsync/internal/cache"
	"github.com/alfredjeanlab/graphsync/internal/convert"
	"github.com/alfredjeanlab/graphsync/internal/join"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/persister"
	"github.com/alfredjeanlab/graphsync/internal/provider"
)

// Directory names the unit made of every directory collection. Synchronize
// accepts it alongside the individual collection names.
const Directory = "directory"

// directoryCollections gate SynchronizeDirectory.
var directoryCollections = []string{
	model.CollectionMembers,
	model.CollectionTeams,
	model.CollectionTeamMembers,
	model.CollectionTeamRepos,
	model.CollectionRepos,
}

// issueScope and directoryScope are the types each unit owns. A run
// replaces the stored rows of exactly these types.
var (
	issueScope = model.Scope{
		EntityTypes: []string{model.EntityTypeIssue},
		RelationshipTypes: []string{
			model.RelationshipType(model.EntityTypeProject, model.RelHas, model.EntityTypeIssue),
			model.RelationshipType(model.EntityTypeUser, model.RelCreated, model.EntityTypeIssue),
			model.RelationshipType(model.EntityTypeUser, model.RelReported, model.EntityTypeIssue),
		},
	}
	directoryScope = model.Scope{
		EntityTypes: []string{
			model.EntityTypeAccount,
			model.EntityTypeMember,
			model.EntityTypeTeam,
			model.EntityTypeRepo,
		},
		RelationshipTypes: []string{
			model.RelationshipType(model.EntityTypeAccount, model.RelHas, model.EntityTypeMember),
			model.RelationshipType(model.EntityTypeAccount, model.RelOwns, model.EntityTypeTeam),
			model.RelationshipType(model.EntityTypeAccount, model.RelOwns, model.EntityTypeRepo),
			model.RelationshipType(model.EntityTypeTeam, model.RelHas, model.EntityTypeMember),
			model.RelationshipType(model.EntityTypeTeam, model.RelAllows, model.EntityTypeRepo),
		},
	}
)

// Synchronizer runs the synchronize phase for one provider installation.
// It holds no state between calls and must not run concurrently with a
// fetch of the same collection.
type Synchronizer struct {
	cache        cache.Cache
	client       provider.Client
	persister    persister.Persister
	customFields []string
	logger       *slog.Logger
}

// New creates a Synchronizer. customFields is the allow list of custom
// issue fields, by id or name.
func New(c cache.Cache, client provider.Client, p persister.Persister, customFields []string, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		cache:        c,
		client:       client,
		persister:    p,
		customFields: customFields,
		logger:       logger,
	}
}

// Synchronize runs the synchronizer that owns collection. Every directory
// collection maps to SynchronizeDirectory.
func (s *Synchronizer) Synchronize(ctx context.Context, collection string) (model.OperationSummary, error) {
	switch {
	case collection == model.CollectionIssues:
		return s.SynchronizeIssues(ctx)
	case collection == Directory, slices.Contains(directoryCollections, collection):
		return s.SynchronizeDirectory(ctx)
	}
	return model.OperationSummary{}, model.ConfigValidationError("unknown collection "+collection, collection)
}

// SynchronizeIssues converts the cached issues into issue entities and
// their project, creator and reporter relationships.
func (s *Synchronizer) SynchronizeIssues(ctx context.Context) (model.OperationSummary, error) {
	if err := cache.RequireCompleted(ctx, s.cache, model.CollectionIssues); err != nil {
		return model.OperationSummary{}, err
	}

	fields, err := s.client.FetchFields(ctx)
	if err != nil {
		return model.OperationSummary{}, fmt.Errorf("fetch fields: %w", err)
	}
	lc := convert.LookupContext{
		FieldsByID:            convert.FieldsByID(fields),
		CustomFieldsToInclude: s.customFields,
	}

	var (
		entities []*model.Entity
		rels     []*model.Relationship
	)
	err = s.cache.ForEach(ctx, model.CollectionIssues, func(entry model.CacheEntry) error {
		var issue model.Issue
		if err := entry.Decode(&issue); err != nil {
			return fmt.Errorf("decode issue %s: %w", entry.Key, err)
		}
		entities = append(entities, convert.IssueEntity(&issue, lc))
		if r, ok := convert.ProjectIssueRelationship(issue.Fields.Project, &issue); ok {
			rels = append(rels, r)
		}
		if r, ok := convert.UserCreatedIssueRelationship(issue.Fields.Creator, &issue); ok {
			rels = append(rels, r)
		}
		if r, ok := convert.UserReportedIssueRelationship(issue.Fields.Reporter, &issue); ok {
			rels = append(rels, r)
		}
		return nil
	})
	if err != nil {
		return model.OperationSummary{}, fmt.Errorf("replay issues: %w", err)
	}

	return s.publish(ctx, model.CollectionIssues, issueScope, entities, rels)
}

// SynchronizeDirectory converts the organization account, members, teams
// and repositories. Teams get their members and repositories from the
// team-members and team-repos collections.
func (s *Synchronizer) SynchronizeDirectory(ctx context.Context) (model.OperationSummary, error) {
	for _, coll := range directoryCollections {
		if err := cache.RequireCompleted(ctx, s.cache, coll); err != nil {
			return model.OperationSummary{}, err
		}
	}

	account, err := s.client.GetAccount(ctx)
	if err != nil {
		return model.OperationSummary{}, fmt.Errorf("get account: %w", err)
	}

	teamMembers, err := decodeAll[model.TeamMember](ctx, s.cache, model.CollectionTeamMembers)
	if err != nil {
		return model.OperationSummary{}, err
	}
	teamRepos, err := decodeAll[model.TeamRepo](ctx, s.cache, model.CollectionTeamRepos)
	if err != nil {
		return model.OperationSummary{}, err
	}
	teams, err := decodeAll[model.Team](ctx, s.cache, model.CollectionTeams)
	if err != nil {
		return model.OperationSummary{}, err
	}
	join.AssembleTeams(teams, teamMembers, teamRepos)

	entities := []*model.Entity{convert.AccountEntity(account)}
	var rels []*model.Relationship

	err = s.cache.ForEach(ctx, model.CollectionMembers, func(entry model.CacheEntry) error {
		var m model.Member
		if err := entry.Decode(&m); err != nil {
			return fmt.Errorf("decode member %s: %w", entry.Key, err)
		}
		entities = append(entities, convert.MemberEntity(&m))
		if r, ok := convert.AccountHasMemberRelationship(account, &m); ok {
			rels = append(rels, r)
		}
		return nil
	})
	if err != nil {
		return model.OperationSummary{}, fmt.Errorf("replay members: %w", err)
	}

	for _, t := range teams {
		entities = append(entities, convert.TeamEntity(t))
		if r, ok := convert.AccountOwnsTeamRelationship(account, t); ok {
			rels = append(rels, r)
		}
		for _, m := range t.Members {
			if r, ok := convert.TeamHasMemberRelationship(t, m); ok {
				rels = append(rels, r)
			}
		}
		for _, repo := range t.Repos {
			if r, ok := convert.TeamAllowsRepoRelationship(t, repo); ok {
				rels = append(rels, r)
			}
		}
	}

	err = s.cache.ForEach(ctx, model.CollectionRepos, func(entry model.CacheEntry) error {
		var repo model.Repo
		if err := entry.Decode(&repo); err != nil {
			return fmt.Errorf("decode repo %s: %w", entry.Key, err)
		}
		entities = append(entities, convert.RepoEntity(&repo))
		if r, ok := convert.AccountOwnsRepoRelationship(account, &repo); ok {
			rels = append(rels, r)
		}
		return nil
	})
	if err != nil {
		return model.OperationSummary{}, fmt.Errorf("replay repos: %w", err)
	}

	return s.publish(ctx, Directory, directoryScope, entities, rels)
}

// publish diffs against empty old snapshots, one set for entities and one
// per relationship type, and publishes them together as the complete state
// of scope.
func (s *Synchronizer) publish(ctx context.Context, collection string, scope model.Scope, entities []*model.Entity, rels []*model.Relationship) (model.OperationSummary, error) {
	sets := []model.OperationSet{s.persister.ProcessEntities(nil, entities)}
	byType := make(map[string][]*model.Relationship)
	for _, r := range rels {
		byType[r.Type] = append(byType[r.Type], r)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		sets = append(sets, s.persister.ProcessRelationships(nil, byType[t]))
	}

	result, err := s.persister.PublishSnapshot(ctx, scope, sets...)
	if err != nil {
		return model.OperationSummary{}, model.PublishError(collection, err)
	}
	summary := s.persister.Summarize(result)
	s.logger.Info("synchronize completed",
		"collection", collection,
		"entities", len(entities),
		"relationships", len(rels),
		"applied", summary.Total(),
		"unchanged", summary.Unchanged,
	)
	return summary, nil
}

// decodeAll materializes a cached collection.
func decodeAll[T any](ctx context.Context, c cache.Cache, collection string) ([]*T, error) {
	var out []*T
	err := c.ForEach(ctx, collection, func(entry model.CacheEntry) error {
		v := new(T)
		if err := entry.Decode(v); err != nil {
			return fmt.Errorf("decode %s %s: %w", collection, entry.Key, err)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", collection, err)
	}
	return out, nil
}

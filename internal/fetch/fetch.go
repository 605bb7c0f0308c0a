// Package fetch is the first phase of a run: it pages resources out of the
// provider into the cache and records completion per collection.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/cache"
	"github.com/alfredjeanlab/graphsync/internal/iterate"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/provider"
)

// DirectoryCollections are fetched together by FetchDirectory, in order.
var DirectoryCollections = []string{
	model.CollectionMembers,
	model.CollectionTeams,
	model.CollectionTeamMembers,
	model.CollectionTeamRepos,
	model.CollectionRepos,
}

// Fetcher copies provider collections into a cache.
type Fetcher struct {
	client   provider.Client
	cache    cache.Cache
	projects []string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Fetcher. projects are the tracker project keys to fetch
// issues for.
func New(client provider.Client, c cache.Cache, projects []string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		cache:    c,
		projects: projects,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IssueQuery returns the search query for one project.
func IssueQuery(project string) string {
	return fmt.Sprintf(`project = "%s" ORDER BY created ASC`, project)
}

// FetchIssues replaces the cached issues with a fresh copy. On failure the
// collection stays in the fetching state so synchronize refuses to run.
func (f *Fetcher) FetchIssues(ctx context.Context) (int, error) {
	n := 0
	err := f.collection(ctx, model.CollectionIssues, func(put putFunc) error {
		for _, project := range f.projects {
			jql := IssueQuery(project)
			err := pages(ctx, func(ctx context.Context, token string) (iterate.Page[*model.Issue], error) {
				return f.client.ListIssues(ctx, jql, token)
			}, func(ctx context.Context, issue *model.Issue, cursor string) error {
				n++
				return put(ctx, issue.ID, issue, cursor)
			})
			if err != nil {
				return fmt.Errorf("project %s: %w", project, err)
			}
		}
		return nil
	})
	return n, err
}

// FetchDirectory replaces the five directory collections. Team members and
// team repositories are listed per team, so teams are fetched before them.
func (f *Fetcher) FetchDirectory(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(DirectoryCollections))

	err := f.collection(ctx, model.CollectionMembers, func(put putFunc) error {
		return pages(ctx, f.client.ListMembers, func(ctx context.Context, m *model.Member, cursor string) error {
			counts[model.CollectionMembers]++
			return put(ctx, m.ID, m, cursor)
		})
	})
	if err != nil {
		return counts, err
	}

	var teamIDs []string
	err = f.collection(ctx, model.CollectionTeams, func(put putFunc) error {
		return pages(ctx, f.client.ListTeams, func(ctx context.Context, t *model.Team, cursor string) error {
			counts[model.CollectionTeams]++
			teamIDs = append(teamIDs, t.ID)
			return put(ctx, t.ID, t, cursor)
		})
	})
	if err != nil {
		return counts, err
	}

	err = f.collection(ctx, model.CollectionTeamMembers, func(put putFunc) error {
		for _, teamID := range teamIDs {
			err := pages(ctx, func(ctx context.Context, token string) (iterate.Page[*model.TeamMember], error) {
				return f.client.ListTeamMembers(ctx, teamID, token)
			}, func(ctx context.Context, m *model.TeamMember, cursor string) error {
				counts[model.CollectionTeamMembers]++
				return put(ctx, teamID+"/"+m.ID, m, cursor)
			})
			if err != nil {
				return fmt.Errorf("team %s: %w", teamID, err)
			}
		}
		return nil
	})
	if err != nil {
		return counts, err
	}

	err = f.collection(ctx, model.CollectionTeamRepos, func(put putFunc) error {
		for _, teamID := range teamIDs {
			err := pages(ctx, func(ctx context.Context, token string) (iterate.Page[*model.TeamRepo], error) {
				return f.client.ListTeamRepos(ctx, teamID, token)
			}, func(ctx context.Context, r *model.TeamRepo, cursor string) error {
				counts[model.CollectionTeamRepos]++
				return put(ctx, teamID+"/"+r.ID, r, cursor)
			})
			if err != nil {
				return fmt.Errorf("team %s: %w", teamID, err)
			}
		}
		return nil
	})
	if err != nil {
		return counts, err
	}

	err = f.collection(ctx, model.CollectionRepos, func(put putFunc) error {
		return pages(ctx, f.client.ListRepos, func(ctx context.Context, r *model.Repo, cursor string) error {
			counts[model.CollectionRepos]++
			return put(ctx, r.ID, r, cursor)
		})
	})
	return counts, err
}

// putFunc stores one resource in the collection being fetched.
type putFunc func(ctx context.Context, key string, resource any, cursor string) error

// collection runs one fetch of collection: clear, mark fetching, fill,
// mark completed.
func (f *Fetcher) collection(ctx context.Context, collection string, fill func(put putFunc) error) error {
	start := f.now()
	if err := f.cache.Clear(ctx, collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	if err := cache.Transition(ctx, f.cache, collection, model.FetchFetching); err != nil {
		return err
	}

	put := func(ctx context.Context, key string, resource any, cursor string) error {
		data, err := json.Marshal(resource)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", collection, key, err)
		}
		return f.cache.Put(ctx, collection, model.CacheEntry{
			Key:       key,
			Data:      data,
			FetchedAt: f.now(),
			Cursor:    cursor,
		})
	}
	if err := fill(put); err != nil {
		f.logger.Error("fetch failed", "collection", collection, "err", err)
		return fmt.Errorf("fetch %s: %w", collection, err)
	}

	if err := cache.Transition(ctx, f.cache, collection, model.FetchCompleted); err != nil {
		return err
	}
	f.logger.Info("fetch completed", "collection", collection, "elapsed", f.now().Sub(start))
	return nil
}

// pages is iterate.Pages with the continuation token that produced each
// item passed to the visitor.
func pages[T any](ctx context.Context, fetch iterate.PageFunc[T], visit func(ctx context.Context, item T, cursor string) error) error {
	var cursor string
	return iterate.Pages(ctx, func(ctx context.Context, token string) (iterate.Page[T], error) {
		cursor = token
		return fetch(ctx, token)
	}, func(ctx context.Context, item T) error {
		return visit(ctx, item, cursor)
	})
}

// Package join stitches independently fetched collections together by
// foreign key.
//
// NestedLoop scans the whole secondary collection for every primary item.
// Indexed groups the secondary collection by foreign key first and then
// looks each primary key up, which is linear in the size of both inputs.
// Both produce the same children in the same order.
package join

import "github.com/alfredjeanlab/graphsync/internal/model"

// Index groups items by the key fk returns, preserving input order within
// each group.
func Index[K comparable, T any](items []T, fk func(T) K) map[K][]T {
	idx := make(map[K][]T)
	for _, item := range items {
		k := fk(item)
		idx[k] = append(idx[k], item)
	}
	return idx
}

// NestedLoop returns, for each primary item, the secondary items whose
// foreign key equals the primary key. The result is aligned with primary;
// a primary with no children gets an empty, non-nil slice.
func NestedLoop[K comparable, P, S any](primary []P, secondary []S, pk func(P) K, fk func(S) K) [][]S {
	out := make([][]S, len(primary))
	for i, p := range primary {
		key := pk(p)
		children := []S{}
		for _, s := range secondary {
			if fk(s) == key {
				children = append(children, s)
			}
		}
		out[i] = children
	}
	return out
}

// Indexed is NestedLoop with the secondary collection pre-indexed.
func Indexed[K comparable, P, S any](primary []P, secondary []S, pk func(P) K, fk func(S) K) [][]S {
	idx := Index(secondary, fk)
	out := make([][]S, len(primary))
	for i, p := range primary {
		children := idx[pk(p)]
		if children == nil {
			children = []S{}
		}
		out[i] = children
	}
	return out
}

// AssembleTeams attaches each team's members and repositories. Teams are
// modified in place and also returned for convenience.
func AssembleTeams(teams []*model.Team, members []*model.TeamMember, repos []*model.TeamRepo) []*model.Team {
	teamID := func(t *model.Team) string { return t.ID }
	memberIdx := Indexed(teams, members, teamID, func(m *model.TeamMember) string { return m.Teams })
	repoIdx := Indexed(teams, repos, teamID, func(r *model.TeamRepo) string { return r.Teams })
	for i, t := range teams {
		t.Members = memberIdx[i]
		t.Repos = repoIdx[i]
	}
	return teams
}

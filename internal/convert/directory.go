package convert

import (
	"strings"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// AccountEntity converts the organization account.
func AccountEntity(a *model.Account) *model.Entity {
	name := a.Name
	if name == "" {
		name = a.Login
	}
	return &model.Entity{
		Key:   model.EntityKey(model.EntityTypeAccount, a.ID),
		Type:  model.EntityTypeAccount,
		Class: model.ClassAccount,
		Properties: map[string]any{
			"id":          a.ID,
			"login":       a.Login,
			"name":        name,
			"displayName": name,
			"accountType": a.Type,
		},
	}
}

// MemberEntity converts an organization member.
func MemberEntity(m *model.Member) *model.Entity {
	name := m.Name
	if name == "" {
		name = m.Login
	}
	props := map[string]any{
		"id":          m.ID,
		"login":       m.Login,
		"username":    m.Login,
		"name":        name,
		"displayName": name,
		"isAdmin":     strings.EqualFold(m.Role, "admin"),
	}
	if m.Email != "" {
		props["email"] = m.Email
	}
	if m.Role != "" {
		props["role"] = strings.ToLower(m.Role)
	}
	return &model.Entity{
		Key:        model.EntityKey(model.EntityTypeMember, m.ID),
		Type:       model.EntityTypeMember,
		Class:      model.ClassUser,
		Properties: props,
	}
}

// TeamEntity converts a team whose Members and Repos were attached by the
// join engine.
func TeamEntity(t *model.Team) *model.Entity {
	logins := []string{}
	for _, m := range t.Members {
		logins = append(logins, m.Login)
	}
	repos := []string{}
	for _, r := range t.Repos {
		repos = append(repos, r.Name)
	}
	props := map[string]any{
		"id":          t.ID,
		"name":        t.Name,
		"displayName": t.Name,
		"members":     logins,
		"repos":       repos,
		"memberCount": len(t.Members),
		"repoCount":   len(t.Repos),
	}
	if t.Slug != "" {
		props["slug"] = t.Slug
	}
	if t.Description != "" {
		props["description"] = t.Description
	}
	return &model.Entity{
		Key:        model.EntityKey(model.EntityTypeTeam, t.ID),
		Type:       model.EntityTypeTeam,
		Class:      model.ClassTeam,
		Properties: props,
	}
}

// RepoEntity converts a repository.
func RepoEntity(r *model.Repo) *model.Entity {
	props := map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"displayName": r.Name,
		"fullName":    r.FullName,
		"public":      !r.Private,
		"archived":    r.Archived,
	}
	if ms, ok := epochMillis(r.CreatedAt); ok {
		props["createdOn"] = ms
	}
	if ms, ok := epochMillis(r.UpdatedAt); ok {
		props["updatedOn"] = ms
	}
	return &model.Entity{
		Key:        model.EntityKey(model.EntityTypeRepo, r.ID),
		Type:       model.EntityTypeRepo,
		Class:      model.ClassRepo,
		Properties: props,
	}
}

// AccountHasMemberRelationship links the account to a member.
func AccountHasMemberRelationship(a *model.Account, m *model.Member) (*model.Relationship, bool) {
	if a.ID == "" || m.ID == "" {
		return nil, false
	}
	return newRelationship(model.EntityTypeAccount, a.ID, model.RelHas, model.EntityTypeMember, m.ID, nil), true
}

// AccountOwnsTeamRelationship links the account to a team.
func AccountOwnsTeamRelationship(a *model.Account, t *model.Team) (*model.Relationship, bool) {
	if a.ID == "" || t.ID == "" {
		return nil, false
	}
	return newRelationship(model.EntityTypeAccount, a.ID, model.RelOwns, model.EntityTypeTeam, t.ID, nil), true
}

// AccountOwnsRepoRelationship links the account to a repository.
func AccountOwnsRepoRelationship(a *model.Account, r *model.Repo) (*model.Relationship, bool) {
	if a.ID == "" || r.ID == "" {
		return nil, false
	}
	return newRelationship(model.EntityTypeAccount, a.ID, model.RelOwns, model.EntityTypeRepo, r.ID, nil), true
}

// TeamHasMemberRelationship links a team to one of its members.
func TeamHasMemberRelationship(t *model.Team, m *model.TeamMember) (*model.Relationship, bool) {
	if t.ID == "" || m.ID == "" {
		return nil, false
	}
	var props map[string]any
	if m.Role != "" {
		props = map[string]any{"role": strings.ToLower(m.Role)}
	}
	return newRelationship(model.EntityTypeTeam, t.ID, model.RelHas, model.EntityTypeMember, m.ID, props), true
}

// TeamAllowsRepoRelationship links a team to a repository it has access to.
func TeamAllowsRepoRelationship(t *model.Team, r *model.TeamRepo) (*model.Relationship, bool) {
	if t.ID == "" || r.ID == "" {
		return nil, false
	}
	var props map[string]any
	if r.Permission != "" {
		props = map[string]any{"permission": strings.ToLower(r.Permission)}
	}
	return newRelationship(model.EntityTypeTeam, t.ID, model.RelAllows, model.EntityTypeRepo, r.ID, props), true
}

package model

import (
	"encoding/json"
	"time"
)

// Collection names used as cache keys.
const (
	CollectionIssues      = "issues"
	CollectionMembers     = "members"
	CollectionTeams       = "teams"
	CollectionTeamMembers = "team-members"
	CollectionTeamRepos   = "team-repos"
	CollectionRepos       = "repos"
)

// Project is an issue-tracker project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// User is an issue-tracker account referenced by issues.
type User struct {
	AccountID    string `json:"accountId"`
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Key returns the identifier used for entity keys. Older API versions
// only populate Name.
func (u *User) Key() string {
	if u.AccountID != "" {
		return u.AccountID
	}
	return u.Name
}

// FieldSchema describes the value type of a field.
type FieldSchema struct {
	Type   string `json:"type"`
	Custom string `json:"custom,omitempty"`
}

// Field is field metadata used to normalize custom fields on issues.
type Field struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Custom bool         `json:"custom"`
	Schema *FieldSchema `json:"schema,omitempty"`
}

// NamedValue is the {name: ...} shape the tracker uses for status, type
// and priority.
type NamedValue struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IssueFields holds the well-known issue fields. Custom holds every
// other field keyed by field id, left undecoded.
type IssueFields struct {
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	Status      *NamedValue `json:"status,omitempty"`
	IssueType   *NamedValue `json:"issuetype,omitempty"`
	Priority    *NamedValue `json:"priority,omitempty"`
	Project     *Project    `json:"project,omitempty"`
	Creator     *User       `json:"creator,omitempty"`
	Reporter    *User       `json:"reporter,omitempty"`
	Assignee    *User       `json:"assignee,omitempty"`
	Labels      []string    `json:"labels,omitempty"`
	Created     string      `json:"created,omitempty"`
	Updated     string      `json:"updated,omitempty"`
	Resolution  *NamedValue `json:"resolution,omitempty"`

	Custom map[string]json.RawMessage `json:"-"`
}

// knownIssueFields are the JSON keys decoded into IssueFields directly.
var knownIssueFields = map[string]bool{
	"summary": true, "description": true, "status": true, "issuetype": true,
	"priority": true, "project": true, "creator": true, "reporter": true,
	"assignee": true, "labels": true, "created": true, "updated": true,
	"resolution": true,
}

// UnmarshalJSON decodes the well-known fields and keeps the rest in Custom.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*f = IssueFields(p)
	for k, v := range all {
		if knownIssueFields[k] || string(v) == "null" {
			continue
		}
		if f.Custom == nil {
			f.Custom = make(map[string]json.RawMessage)
		}
		f.Custom[k] = v
	}
	return nil
}

// MarshalJSON writes the well-known fields and the custom fields side by side.
func (f IssueFields) MarshalJSON() ([]byte, error) {
	type plain IssueFields
	data, err := json.Marshal(plain(f))
	if err != nil || len(f.Custom) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range f.Custom {
		all[k] = v
	}
	return json.Marshal(all)
}

// Issue is an issue-tracker issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self,omitempty"`
	Fields IssueFields `json:"fields"`
}

// Account is the organization that owns the directory resources.
type Account struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Member is a user of the organization.
type Member struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Teams string `json:"teams,omitempty"`
}

// TeamMember links a member to a team. Teams is the team id.
type TeamMember struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Role  string `json:"role,omitempty"`
	Teams string `json:"teams"`
}

// TeamRepo links a repository to a team. Teams is the team id.
type TeamRepo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Permission string `json:"permission,omitempty"`
	Teams      string `json:"teams"`
}

// Team is an organization team. Members and Repos are derived by joining
// the team-members and team-repos collections on the team id.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`

	Members []*TeamMember `json:"members,omitempty"`
	Repos   []*TeamRepo   `json:"repos,omitempty"`
}

// Repo is a code repository owned by the organization.
type Repo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FullName  string `json:"full_name,omitempty"`
	Private   bool   `json:"private"`
	Archived  bool   `json:"archived"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Permissions are the scopes granted to the directory installation token.
type Permissions struct {
	Members  string `json:"members,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// CacheEntry wraps one raw resource with its ingestion metadata.
type CacheEntry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
	Cursor    string          `json:"cursor,omitempty"`
}

// Decode unmarshals the entry payload into v.
func (e CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

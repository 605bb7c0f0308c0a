package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Entity types and classes produced by the converters.
const (
	EntityTypeIssue   = "jira_issue"
	EntityTypeProject = "jira_project"
	EntityTypeUser    = "jira_user"
	EntityTypeAccount = "github_account"
	EntityTypeMember  = "github_user"
	EntityTypeTeam    = "github_team"
	EntityTypeRepo    = "github_repo"

	ClassIssue   = "Record"
	ClassProject = "Project"
	ClassUser    = "User"
	ClassAccount = "Account"
	ClassTeam    = "UserGroup"
	ClassRepo    = "CodeRepo"
)

// Relationship classes.
const (
	RelHas      = "HAS"
	RelCreated  = "CREATED"
	RelReported = "REPORTED"
	RelOwns     = "OWNS"
	RelAllows   = "ALLOWS"
)

// Entity is a normalized node in the output graph. Key is stable across
// runs and unique across types.
type Entity struct {
	Key        string         `json:"key"`
	Type       string         `json:"type"`
	Class      string         `json:"class"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Hash returns a digest of the entity identity and properties. Two
// entities with the same hash need no update.
func (e *Entity) Hash() string {
	return digest(e.Type, e.Class, e.Properties)
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	Key        string         `json:"key"`
	Type       string         `json:"type"`
	Class      string         `json:"class"`
	FromKey    string         `json:"from_key"`
	ToKey      string         `json:"to_key"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Hash returns a digest of the relationship endpoints and properties.
func (r *Relationship) Hash() string {
	return digest(r.Type, r.Class, map[string]any{
		"from":       r.FromKey,
		"to":         r.ToKey,
		"properties": r.Properties,
	})
}

// EntityKey builds the stable key for a provider resource.
func EntityKey(entityType, id string) string {
	return entityType + ":" + id
}

// RelationshipKey builds the stable key for an edge.
func RelationshipKey(fromKey, class, toKey string) string {
	return fromKey + "|" + class + "|" + toKey
}

// RelationshipType builds the relationship type name, e.g.
// "jira_project_has_jira_issue".
func RelationshipType(fromType, class, toType string) string {
	return fromType + "_" + strings.ToLower(class) + "_" + toType
}

// digest hashes the JSON encoding of its parts. encoding/json sorts map
// keys, so equal property maps always produce the same digest.
func digest(parts ...any) string {
	data, err := json.Marshal(parts)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Package convert maps provider resources onto graph entities and
// relationships. Every function here is pure: the same input always
// yields the same output, and malformed input produces fewer properties
// or no relationship rather than an error.
package convert

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// trackerTimeLayout is the timestamp format the issue tracker uses.
const trackerTimeLayout = "2006-01-02T15:04:05.000-0700"

// doneStatuses are status names that mark an issue inactive.
var doneStatuses = map[string]bool{"done": true, "closed": true, "resolved": true}

// LookupContext carries the cross-references issue conversion needs.
type LookupContext struct {
	// FieldsByID maps field ids to field metadata.
	FieldsByID map[string]*model.Field
	// CustomFieldsToInclude lists custom fields to surface, by id or name.
	CustomFieldsToInclude []string
	// RequestedClass overrides the entity class (set by the create action).
	RequestedClass string
}

// FieldsByID indexes field metadata by id.
func FieldsByID(fields []*model.Field) map[string]*model.Field {
	m := make(map[string]*model.Field, len(fields))
	for _, f := range fields {
		m[f.ID] = f
	}
	return m
}

// IssueEntity converts an issue into its graph entity.
func IssueEntity(issue *model.Issue, lc LookupContext) *model.Entity {
	f := issue.Fields
	class := model.ClassIssue
	if lc.RequestedClass != "" {
		class = lc.RequestedClass
	}

	props := map[string]any{
		"id":          issue.ID,
		"key":         issue.Key,
		"name":        issue.Key,
		"displayName": issue.Key,
		"summary":     f.Summary,
		"category":    "issue",
	}
	if issue.Self != "" {
		props["webLink"] = issue.Self
	}
	if f.Description != "" {
		props["description"] = f.Description
	}
	if f.Status != nil {
		props["status"] = f.Status.Name
		props["active"] = !doneStatuses[strings.ToLower(f.Status.Name)]
	}
	if f.IssueType != nil {
		props["issueType"] = f.IssueType.Name
	}
	if f.Priority != nil {
		props["priority"] = f.Priority.Name
	}
	if f.Resolution != nil {
		props["resolution"] = f.Resolution.Name
	}
	if f.Project != nil {
		props["project"] = f.Project.Key
	}
	if f.Creator != nil {
		props["creator"] = userName(f.Creator)
	}
	if f.Reporter != nil {
		props["reporter"] = userName(f.Reporter)
	}
	if f.Assignee != nil {
		props["assignee"] = userName(f.Assignee)
	}
	if len(f.Labels) > 0 {
		props["labels"] = append([]string(nil), f.Labels...)
	}
	if ms, ok := epochMillis(f.Created); ok {
		props["createdOn"] = ms
	}
	if ms, ok := epochMillis(f.Updated); ok {
		props["updatedOn"] = ms
	}

	for name, value := range customFields(f.Custom, lc) {
		if _, taken := props[name]; !taken {
			props[name] = value
		}
	}

	return &model.Entity{
		Key:        model.EntityKey(model.EntityTypeIssue, issue.ID),
		Type:       model.EntityTypeIssue,
		Class:      class,
		Properties: props,
	}
}

// ProjectIssueRelationship links the issue's project to the issue.
func ProjectIssueRelationship(project *model.Project, issue *model.Issue) (*model.Relationship, bool) {
	if project == nil {
		return nil, false
	}
	id := project.ID
	if id == "" {
		id = project.Key
	}
	if id == "" || issue.ID == "" {
		return nil, false
	}
	return newRelationship(model.EntityTypeProject, id, model.RelHas, model.EntityTypeIssue, issue.ID, nil), true
}

// UserCreatedIssueRelationship links the creator to the issue.
func UserCreatedIssueRelationship(creator *model.User, issue *model.Issue) (*model.Relationship, bool) {
	return userIssueRelationship(creator, model.RelCreated, issue)
}

// UserReportedIssueRelationship links the reporter to the issue. Issues
// without a reporter produce no relationship.
func UserReportedIssueRelationship(reporter *model.User, issue *model.Issue) (*model.Relationship, bool) {
	return userIssueRelationship(reporter, model.RelReported, issue)
}

func userIssueRelationship(user *model.User, class string, issue *model.Issue) (*model.Relationship, bool) {
	if user == nil || user.Key() == "" || issue.ID == "" {
		return nil, false
	}
	return newRelationship(model.EntityTypeUser, user.Key(), class, model.EntityTypeIssue, issue.ID, nil), true
}

func userName(u *model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Key()
}

func epochMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse(trackerTimeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}

// customFields returns the allow-listed custom fields present on an issue,
// keyed by their normalized property name.
func customFields(raw map[string]json.RawMessage, lc LookupContext) map[string]any {
	if len(raw) == 0 || len(lc.CustomFieldsToInclude) == 0 {
		return nil
	}
	include := make(map[string]bool, len(lc.CustomFieldsToInclude))
	for _, c := range lc.CustomFieldsToInclude {
		include[strings.ToLower(strings.TrimSpace(c))] = true
	}

	out := make(map[string]any)
	for id, value := range raw {
		field, ok := lc.FieldsByID[id]
		if !ok || !field.Custom {
			continue
		}
		if !include[strings.ToLower(id)] && !include[strings.ToLower(field.Name)] {
			continue
		}
		name := PropertyName(field.Name)
		if name == "" {
			continue
		}
		if v, ok := fieldValue(value); ok {
			out[name] = v
		}
	}
	return out
}

// fieldValue flattens a custom field value to a scalar or a string list.
// Option objects ({"value": ...} or {"name": ...}) become their label.
func fieldValue(raw json.RawMessage) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	switch x := v.(type) {
	case nil:
		return nil, false
	case string, bool:
		return x, true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return x.String(), true
	case map[string]any:
		return optionLabel(x)
	case []any:
		labels := []string{}
		for _, item := range x {
			switch y := item.(type) {
			case string:
				labels = append(labels, y)
			case map[string]any:
				if l, ok := optionLabel(y); ok {
					if s, ok := l.(string); ok {
						labels = append(labels, s)
					}
				}
			}
		}
		return labels, true
	}
	return nil, false
}

func optionLabel(m map[string]any) (any, bool) {
	for _, k := range []string{"value", "name", "displayName", "key"} {
		if s, ok := m[k].(string); ok {
			return s, true
		}
	}
	return nil, false
}

// PropertyName turns a field display name into a lower camel case
// property name, e.g. "Story Points" -> "storyPoints".
func PropertyName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

func newRelationship(fromType, fromID, class, toType, toID string, props map[string]any) *model.Relationship {
	from := model.EntityKey(fromType, fromID)
	to := model.EntityKey(toType, toID)
	return &model.Relationship{
		Key:        model.RelationshipKey(from, class, to),
		Type:       model.RelationshipType(fromType, class, toType),
		Class:      class,
		FromKey:    from,
		ToKey:      to,
		Properties: props,
	}
}

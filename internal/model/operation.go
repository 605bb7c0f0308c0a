package model

import "sort"

// Action is the kind of change an operation applies.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Operation is one change against the persisted graph. Exactly one of
// Entity or Relationship is set.
type Operation struct {
	Action       Action        `json:"action"`
	Type         string        `json:"type"`
	Entity       *Entity       `json:"entity,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
}

// Key returns the key of the entity or relationship the operation targets.
func (o *Operation) Key() string {
	if o.Entity != nil {
		return o.Entity.Key
	}
	if o.Relationship != nil {
		return o.Relationship.Key
	}
	return ""
}

// OperationSet is the diff of one old/new snapshot pair.
type OperationSet []*Operation

// Count returns how many operations in the set have the given action.
func (s OperationSet) Count(action Action) int {
	n := 0
	for _, op := range s {
		if op.Action == action {
			n++
		}
	}
	return n
}

// Scope names the entity and relationship types a snapshot is complete
// for. Stored rows of those types that the snapshot leaves out are stale.
type Scope struct {
	EntityTypes       []string `json:"entity_types"`
	RelationshipTypes []string `json:"relationship_types"`
}

// PublishResult is what the persister reports after publishing a batch.
// Applied holds the operations that changed persisted state; Skipped
// counts operations whose target was already up to date.
type PublishResult struct {
	Applied []*Operation `json:"applied"`
	Skipped int          `json:"skipped"`
}

// ActionCounts holds per-action counts for one entity or relationship type.
type ActionCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Add increments the counter for action.
func (c *ActionCounts) Add(action Action) {
	switch action {
	case ActionCreate:
		c.Created++
	case ActionUpdate:
		c.Updated++
	case ActionDelete:
		c.Deleted++
	}
}

// OperationSummary maps an entity or relationship type to its counts.
type OperationSummary struct {
	Types     map[string]*ActionCounts `json:"types"`
	Unchanged int                      `json:"unchanged,omitempty"`
}

// NewOperationSummary returns an empty summary.
func NewOperationSummary() OperationSummary {
	return OperationSummary{Types: make(map[string]*ActionCounts)}
}

// Add counts one applied operation.
func (s *OperationSummary) Add(typ string, action Action) {
	if s.Types == nil {
		s.Types = make(map[string]*ActionCounts)
	}
	c, ok := s.Types[typ]
	if !ok {
		c = &ActionCounts{}
		s.Types[typ] = c
	}
	c.Add(action)
}

// Count returns the count for a type and action.
func (s OperationSummary) Count(typ string, action Action) int {
	c, ok := s.Types[typ]
	if !ok {
		return 0
	}
	switch action {
	case ActionCreate:
		return c.Created
	case ActionUpdate:
		return c.Updated
	case ActionDelete:
		return c.Deleted
	}
	return 0
}

// Merge adds every count in other to s.
func (s *OperationSummary) Merge(other OperationSummary) {
	if s.Types == nil {
		s.Types = make(map[string]*ActionCounts)
	}
	for typ, c := range other.Types {
		dst, ok := s.Types[typ]
		if !ok {
			dst = &ActionCounts{}
			s.Types[typ] = dst
		}
		dst.Created += c.Created
		dst.Updated += c.Updated
		dst.Deleted += c.Deleted
	}
	s.Unchanged += other.Unchanged
}

// Total returns the number of applied operations.
func (s OperationSummary) Total() int {
	n := 0
	for _, c := range s.Types {
		n += c.Created + c.Updated + c.Deleted
	}
	return n
}

// SortedTypes returns the summarized types in lexical order.
func (s OperationSummary) SortedTypes() []string {
	types := make([]string, 0, len(s.Types))
	for t := range s.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

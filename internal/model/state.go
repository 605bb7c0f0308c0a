package model

import "time"

// FetchState is the completion state of a cached collection.
type FetchState string

const (
	FetchNotStarted FetchState = "not_started"
	FetchFetching   FetchState = "fetching"
	FetchCompleted  FetchState = "completed"
)

// String returns the string representation of the state.
func (s FetchState) String() string {
	return string(s)
}

// IsValid checks whether the state is a known value.
func (s FetchState) IsValid() bool {
	switch s {
	case FetchNotStarted, FetchFetching, FetchCompleted:
		return true
	}
	return false
}

// CanTransition reports whether the fetch phase may move from s to next.
// A collection can always be restarted.
func (s FetchState) CanTransition(next FetchState) bool {
	switch next {
	case FetchFetching, FetchNotStarted:
		return true
	case FetchCompleted:
		return s == FetchFetching
	}
	return false
}

// CacheState is the recorded fetch state of one collection.
type CacheState struct {
	Collection string     `json:"collection"`
	State      FetchState `json:"state"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ResourceFetchCompleted reports whether the fetch phase finished for the
// collection. A nil state has not completed.
func (s *CacheState) ResourceFetchCompleted() bool {
	return s != nil && s.State == FetchCompleted
}

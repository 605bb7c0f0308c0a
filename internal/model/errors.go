package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies fatal pipeline errors so callers can branch on kind
// instead of message text.
type ErrorKind string

const (
	KindAuthentication   ErrorKind = "authentication"
	KindConfigValidation ErrorKind = "config_validation"
	KindIncompleteFetch  ErrorKind = "incomplete_fetch"
	KindPublish          ErrorKind = "publish"
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	return string(k)
}

// Error is a classified pipeline error. Values lists every offending
// value for validation errors; StatusCode is set when the cause came from
// the provider transport.
type Error struct {
	Kind       ErrorKind
	Collection string
	Message    string
	Values     []string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IncompleteFetchError reports that synchronize ran before the fetch phase
// completed for collection.
func IncompleteFetchError(collection string) *Error {
	return &Error{
		Kind:       KindIncompleteFetch,
		Collection: collection,
		Message:    fmt.Sprintf("%s fetching did not complete, cannot synchronize %s", collection, collection),
	}
}

// AuthenticationError wraps a failed verification call.
func AuthenticationError(err error, statusCode int) *Error {
	return &Error{
		Kind:       KindAuthentication,
		Message:    "provider authentication failed",
		StatusCode: statusCode,
		Err:        err,
	}
}

// ConfigValidationError reports invalid configuration values. message
// should describe what is wrong with values.
func ConfigValidationError(message string, values ...string) *Error {
	return &Error{
		Kind:    KindConfigValidation,
		Message: message,
		Values:  values,
	}
}

// PublishError wraps a persister publish failure for collection.
func PublishError(collection string, err error) *Error {
	return &Error{
		Kind:       KindPublish,
		Collection: collection,
		Message:    "publish operations for " + collection,
		Err:        err,
	}
}

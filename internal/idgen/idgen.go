// Package idgen generates run and action identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers this package generates.
const (
	RunPrefix    = "run-"
	ActionPrefix = "act-"
)

// alphabet is lowercase so identifiers are safe in object keys and NATS
// subjects.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Length is the number of random characters after the prefix.
const Length = 10

// RunID returns an identifier for one fetch and synchronize cycle.
func RunID() (string, error) {
	return withPrefix(RunPrefix)
}

// ActionID returns an identifier for one dispatched action.
func ActionID() (string, error) {
	return withPrefix(ActionPrefix)
}

func withPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Package uuid generates time-ordered correlation IDs for fleet cycles.
package uuid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings, optionally prefixed.
type Generator struct {
	prefix string
}

// NewUUIDGenerator creates a Generator with no prefix.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewPrefixed creates a Generator whose IDs start with prefix, e.g. "cycle-".
func NewPrefixed(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a prefixed UUID7 string. IDs from one process sort by creation time.
func (g Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return g.prefix + id.String(), nil
}

// Time returns the creation time embedded in an ID produced by g.
func (g Generator) Time(id string) (time.Time, error) {
	parsed, err := uuid.Parse(strings.TrimPrefix(id, g.prefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	if parsed.Version() != 7 {
		return time.Time{}, fmt.Errorf("id %q is uuid version %d, not 7", id, parsed.Version())
	}
	sec, nsec := parsed.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}

// Package uuid mints the record ids used across the CRM. Ids are UUID v7 so
// they sort by creation time in Mongo indexes and in the CLI listings.
package uuid

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// NewUUID returns a fresh v7 id in canonical string form.
func NewUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID v7: %w", err)
	}
	return id.String(), nil
}

// MustNewUUID is NewUUID for callers that cannot recover from an exhausted
// entropy source.
func MustNewUUID() string {
	id, err := NewUUID()
	if err != nil {
		panic(err)
	}
	return id
}

// IsValid reports whether id parses as a UUID of any version.
func IsValid(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}

// CreatedAt recovers the millisecond timestamp embedded in a v7 id.
func CreatedAt(id string) (time.Time, error) {
	u, err := uuid.FromString(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid UUID %q: %w", id, err)
	}
	if u.Version() != uuid.V7 {
		return time.Time{}, fmt.Errorf("UUID %q is version %d, not 7", id, u.Version())
	}
	ts, err := uuid.TimestampFromV7(u)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time()
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheMichaelB/casevault/internal/models"
)

// ErrNotFound is returned by Get when no record exists under the id.
var ErrNotFound = models.ErrNotFound

// MaxIDLength bounds record identifiers.
const MaxIDLength = 255

// BlobStore is a durable map from string ids to opaque byte records.
// Each write is independently durable once it returns; there are no
// transactions spanning several ids.
type BlobStore interface {
	// Get returns the record stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)

	// Set stores value under id, replacing any previous record.
	Set(ctx context.Context, id string, value []byte) error

	// SetIfAbsent stores value only if id holds no record. It returns the
	// record that is stored afterwards and whether this call created it.
	SetIfAbsent(ctx context.Context, id string, value []byte) (stored []byte, created bool, err error)

	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the backend.
	Close() error
}

// ValidateID checks that id is usable by every backend.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("invalid record id: empty")
	case len(id) > MaxIDLength:
		return fmt.Errorf("invalid record id: longer than %d bytes", MaxIDLength)
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("invalid record id: contains null bytes")
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

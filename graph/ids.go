// ABOUTME: Identifier helpers for nodes (UUID) and generation requests/documents (ULID).
// ABOUTME: Centralizes id creation so every package uses the same entropy source.
package graph

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewNodeID returns a fresh random node id.
func NewNodeID() string {
	return uuid.New().String()
}

// NewULID generates a new ULID using crypto/rand entropy.
func NewULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

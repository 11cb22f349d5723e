// Package vector provides storage and similarity search over embedded
// policy chunks. Two backends are available: an in-memory store for
// tests and single-node deployments, and a Postgres store backed by
// the pgvector extension.
package vector

import (
	"context"
	"errors"

	"github.com/apca/claimaudit/internal/model"
)

// ErrDimensionMismatch is returned when a vector's length does not
// match the dimension the collection was created with.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Filter narrows a search to chunks whose metadata matches every
// key/value pair. Supported keys are "policy_id" and "payer".
type Filter map[string]string

// Store persists embedded policy chunks and answers nearest-neighbor
// queries by cosine similarity.
type Store interface {
	// EnsureCollection creates the backing collection if it does not
	// exist and verifies its dimension if it does.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes chunks keyed by ChunkID. Re-upserting an existing
	// ID replaces the stored chunk.
	Upsert(ctx context.Context, chunks []model.PolicyChunk) error

	// Search returns up to limit chunks ordered by descending cosine
	// similarity to the query vector, restricted by filter.
	Search(ctx context.Context, query []float32, limit int, filter Filter) ([]model.ScoredChunk, error)

	// DeletePolicy removes every chunk belonging to the given policy.
	// It reports the number of chunks removed.
	DeletePolicy(ctx context.Context, policyID string) (int, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

func matchesFilter(c model.PolicyChunk, filter Filter) bool {
	for key, want := range filter {
		switch key {
		case "policy_id":
			if c.PolicyID != want {
				return false
			}
		case "payer":
			if c.Payer != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

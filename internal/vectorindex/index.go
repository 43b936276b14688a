// Package vectorindex stores chunk embeddings and answers nearest-neighbour
// queries restricted to a single document.
package vectorindex

import (
	"context"
	"regexp"

	"github.com/cloo-solutions/docchat/internal/domain"
)

// Distance is the similarity metric of a collection.
type Distance string

const (
	Cosine Distance = "Cosine"
	Dot    Distance = "Dot"
	Euclid Distance = "Euclid"
)

// CollectionSpec describes a named set of fixed-dimension vectors.
type CollectionSpec struct {
	Name      string
	Dimension int
	Distance  Distance
}

// Filter restricts a search to payloads matching every non-empty field.
type Filter struct {
	DocumentID string
}

// Hit is a single search result. Higher scores are more similar.
type Hit struct {
	ID      string
	Score   float64
	Payload domain.ChunkPayload
}

// Index is the storage contract every backend implements.
type Index interface {
	// EnsureCollection creates the collection if absent. It fails with
	// SCHEMA_MISMATCH when the collection exists with another dimension.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	// Upsert writes all points or none. ids, vectors and payloads must
	// have equal length and every vector must match the collection dimension.
	Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error
	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)
	// Delete removes the given points. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
}

// Backend is an Index that can report reachability.
type Backend interface {
	Index
	Ping(ctx context.Context) error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

var errCollectionNotReady = domain.NewDomainError(domain.ErrCodeInvalidOperation, "vector collection has not been initialised")

func validateSpec(spec CollectionSpec) error {
	if !collectionNamePattern.MatchString(spec.Name) {
		return domain.NewDomainError(domain.ErrCodeValidation, "collection name must be lower-case letters, digits or underscores")
	}
	if spec.Dimension <= 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "collection dimension must be positive")
	}
	switch spec.Distance {
	case Cosine, Dot, Euclid:
		return nil
	default:
		return domain.NewDomainError(domain.ErrCodeValidation, "unknown distance: "+string(spec.Distance))
	}
}

func validatePoints(dimension int, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return domain.ErrLengthMismatch
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return domain.ErrDimensionMismatch
		}
	}
	return nil
}

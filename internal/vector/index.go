// Package vector provides exact nearest-neighbor indexes, one per named vector
// field of a collection.
package vector

import (
	"context"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// VectorIndex stores fixed-dimension vectors for one field and answers exact
// nearest-neighbor queries under one distance metric.
type VectorIndex interface {
	// Add inserts or replaces vectors. A replaced id keeps its insertion slot.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	SearchByID(ctx context.Context, id string, k int) ([]*VectorResult, error)
	SearchBatch(ctx context.Context, queries [][]float32, k int) ([][]*VectorResult, error)
	Get(id string) ([]float32, bool)
	IDs() []string
	Size() int
	Dimensions() int
	Distance() models.Distance
	Type() string
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // squared L2 distance, cosine similarity or dot product
}

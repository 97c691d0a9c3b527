package vector

import (
	"fmt"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory exact brute-force search.
	IndexTypeMemory IndexType = "memory"
)

// ParseIndexType validates an index type name. Empty means memory.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(s) {
	case IndexTypeMemory, "":
		return IndexTypeMemory, nil
	default:
		return "", fmt.Errorf("unknown index type: %s (supported: memory)", s)
	}
}

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default).
func NewVectorIndex(indexType string, dimensions int, distance models.Distance) (VectorIndex, error) {
	if _, err := ParseIndexType(indexType); err != nil {
		return nil, err
	}
	return NewMemoryIndex(dimensions, distance)
}

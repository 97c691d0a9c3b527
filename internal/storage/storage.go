// Package storage defines the durable catalog for on_disk collections: the
// collection schema, its points in insertion order and its edges.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// CollectionRecord is the persisted description of a collection.
type CollectionRecord struct {
	Name       string
	InstanceID string
	Schema     models.Schema
	OnDisk     bool
	CreatedAt  time.Time
}

// Storage defines collection, point and edge persistence operations.
type Storage interface {
	// Collection operations
	CreateCollection(ctx context.Context, rec *CollectionRecord) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]*CollectionRecord, error)

	// Point operations. UpsertPoints writes the full post-merge state of each
	// point in one transaction; a point keeps its original insertion position.
	UpsertPoints(ctx context.Context, collection string, points []*models.Point) error
	LoadPoints(ctx context.Context, collection string) ([]*models.Point, error)

	// Edge operations
	UpsertEdge(ctx context.Context, collection string, edge models.Edge) error
	LoadEdges(ctx context.Context, collection string) ([]models.Edge, error)

	// Stats
	CountPoints(ctx context.Context, collection string) (int64, error)
	CountEdges(ctx context.Context, collection string) (int64, error)

	Close() error
}

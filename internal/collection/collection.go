package collection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/graph"
	"github.com/hyperjump/vectorgraph/internal/models"
	"github.com/hyperjump/vectorgraph/internal/storage"
	"github.com/hyperjump/vectorgraph/internal/vector"
)

// Collection is one named collection. All reads take mu for reading and all
// writes take it for writing; once deleted is set every operation fails with
// a state error.
type Collection struct {
	mu         sync.RWMutex
	name       string
	instanceID string
	schema     models.Schema
	onDisk     bool
	createdAt  time.Time
	deleted    bool

	points  map[string]*models.Point
	indexes map[string]vector.VectorIndex
	graph   *graph.Engine

	// store is set only for on_disk collections.
	store    storage.Storage
	maxBatch int
	logger   *zap.Logger
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// InstanceID identifies this incarnation of the collection. A collection
// deleted and re-created under the same name gets a new id.
func (c *Collection) InstanceID() string { return c.instanceID }

// Schema returns a copy of the immutable vector schema.
func (c *Collection) Schema() models.Schema { return c.schema.Clone() }

func (c *Collection) read(fn func() error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deleted {
		return models.CollectionDeleted(c.name)
	}
	return fn()
}

func (c *Collection) infoLocked() models.CollectionInfo {
	return models.CollectionInfo{
		Name:        c.name,
		InstanceID:  c.instanceID,
		Vectors:     c.schema.Clone(),
		OnDisk:      c.onDisk,
		PointsCount: len(c.points),
		EdgesCount:  c.graph.Store().EdgeCount(),
		CreatedAt:   c.createdAt,
	}
}

// Info returns the collection summary.
func (c *Collection) Info() (models.CollectionInfo, error) {
	var info models.CollectionInfo
	err := c.read(func() error {
		info = c.infoLocked()
		return nil
	})
	return info, err
}

// GetPoint returns a copy of a stored point.
func (c *Collection) GetPoint(id string) (*models.Point, error) {
	var out *models.Point
	err := c.read(func() error {
		p, ok := c.points[id]
		if !ok {
			return models.PointNotFound(id, "")
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// markDeleted waits for the write lock, drops the durable rows and flags the
// collection so later operations fail with a state error.
func (c *Collection) markDeleted(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return models.CollectionDeleted(c.name)
	}
	if c.store != nil {
		if err := c.store.DeleteCollection(ctx, c.name); err != nil {
			return models.Internal("failed to delete persisted collection", err)
		}
	}
	c.deleted = true
	for _, idx := range c.indexes {
		_ = idx.Close()
	}
	return nil
}

// Snapshot is a consistent read view of a collection. It is only valid
// inside the function passed to View.
type Snapshot struct {
	c *Collection
}

// Index returns the vector index of field.
func (s Snapshot) Index(field string) (vector.VectorIndex, error) {
	idx, ok := s.c.indexes[field]
	if !ok {
		return nil, models.UnknownVectorField(field)
	}
	return idx, nil
}

// Params returns the vector params of field.
func (s Snapshot) Params(field string) (models.VectorParams, bool) {
	p, ok := s.c.schema[field]
	return p, ok
}

// HasPoint reports whether a point with id exists.
func (s Snapshot) HasPoint(id string) bool {
	_, ok := s.c.points[id]
	return ok
}

// View runs fn under the collection read lock so that everything fn observes
// belongs to one state of the collection.
func (c *Collection) View(fn func(Snapshot) error) error {
	return c.read(func() error { return fn(Snapshot{c: c}) })
}

// AddRelationship inserts or re-weights an edge. Endpoints do not have to be
// stored points.
func (c *Collection) AddRelationship(ctx context.Context, edge models.Edge) (bool, error) {
	if err := graph.ValidateEdge(edge.FromID, edge.ToID, edge.Relationship, edge.Weight); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return false, models.CollectionDeleted(c.name)
	}
	if c.store != nil {
		if err := c.store.UpsertEdge(ctx, c.name, edge); err != nil {
			return false, models.Internal("failed to persist relationship", err)
		}
	}
	created, err := c.graph.Store().AddEdge(edge.FromID, edge.ToID, edge.Relationship, edge.Weight)
	if err != nil {
		return false, err
	}
	c.logger.Debug("relationship stored",
		zap.String("from_id", edge.FromID),
		zap.String("to_id", edge.ToID),
		zap.String("relationship", edge.Relationship),
		zap.Float64("weight", edge.Weight),
		zap.Bool("created", created),
	)
	return created, nil
}

// Relationships returns the outgoing then incoming edges of id.
func (c *Collection) Relationships(id string) ([]models.Edge, error) {
	var out []models.Edge
	err := c.read(func() error {
		out = c.graph.Store().Relationships(id)
		return nil
	})
	return out, err
}

// Traverse runs a bounded breadth-first traversal.
func (c *Collection) Traverse(ctx context.Context, req models.TraversalRequest) (*models.TraversalResult, error) {
	var out *models.TraversalResult
	err := c.read(func() error {
		var err error
		out, err = c.graph.Traverse(ctx, req)
		return err
	})
	return out, err
}

// ShortestPath finds a directed path from start to end.
func (c *Collection) ShortestPath(ctx context.Context, start, end string, weighted bool) (*models.PathResult, error) {
	var out *models.PathResult
	err := c.read(func() error {
		var err error
		out, err = c.graph.ShortestPath(ctx, start, end, weighted)
		return err
	})
	return out, err
}

// RelatedByWeight returns one-hop outgoing neighbors with weight >= minWeight.
func (c *Collection) RelatedByWeight(id string, minWeight float64) (*models.NeighborResult, error) {
	var out *models.NeighborResult
	err := c.read(func() error {
		out = c.graph.RelatedByWeight(id, minWeight)
		return nil
	})
	return out, err
}

// StronglyConnected returns neighbors in either direction over edges with
// weight >= threshold.
func (c *Collection) StronglyConnected(id string, threshold float64) (*models.NeighborResult, error) {
	var out *models.NeighborResult
	err := c.read(func() error {
		out = c.graph.StronglyConnected(id, threshold)
		return nil
	})
	return out, err
}

// ByRelationship returns neighbors over edges with the given label.
func (c *Collection) ByRelationship(id, rel string, dir models.Direction) (*models.NeighborResult, error) {
	var out *models.NeighborResult
	err := c.read(func() error {
		var err error
		out, err = c.graph.ByRelationship(id, rel, dir)
		return err
	})
	return out, err
}

// Graph returns every node and edge.
func (c *Collection) Graph() (models.GraphDump, error) {
	var out models.GraphDump
	err := c.read(func() error {
		out = c.graph.Dump()
		return nil
	})
	return out, err
}

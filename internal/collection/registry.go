// Package collection owns the named collections: each one pairs per-field
// vector indexes and a point table with a relationship graph, guarded by a
// single per-collection read/write lock.
package collection

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/graph"
	"github.com/hyperjump/vectorgraph/internal/models"
	"github.com/hyperjump/vectorgraph/internal/storage"
	"github.com/hyperjump/vectorgraph/internal/vector"
)

// Options configures a Registry.
type Options struct {
	// Storage persists on_disk collections. Nil keeps everything in memory.
	Storage storage.Storage
	Logger  *zap.Logger
	// IndexType selects the vector index implementation (see vector.NewVectorIndex).
	IndexType       string
	MaxVectorFields int
	MaxBatchPoints  int
	GraphOptions    []graph.EngineOption
}

// Registry maps collection names to live collections. mu guards only the map;
// it is never held while waiting on a collection lock.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	// deleting holds names whose Delete is waiting on the collection lock.
	// Create refuses them until the delete finishes.
	deleting map[string]struct{}
	opts     Options
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collections: make(map[string]*Collection),
		deleting:    make(map[string]struct{}),
		opts:        opts,
		logger:      logger,
	}
}

// MaxVectorFields returns the per-collection named field limit.
func (r *Registry) MaxVectorFields() int { return r.opts.MaxVectorFields }

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return models.Validationf("invalid_collection_name", "collection name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return models.Validationf("invalid_collection_name", "collection name %q cannot contain slashes", name)
	}
	return nil
}

func (r *Registry) newCollection(name, instanceID string, schema models.Schema, onDisk bool, createdAt time.Time) (*Collection, error) {
	c := &Collection{
		name:       name,
		instanceID: instanceID,
		schema:     schema.Clone(),
		onDisk:     onDisk,
		createdAt:  createdAt,
		points:     make(map[string]*models.Point),
		indexes:    make(map[string]vector.VectorIndex, len(schema)),
		maxBatch:   r.opts.MaxBatchPoints,
		logger:     r.logger.With(zap.String("collection", name)),
	}
	for _, field := range schema.Fields() {
		p := schema[field]
		idx, err := vector.NewVectorIndex(r.opts.IndexType, p.Size, p.Distance)
		if err != nil {
			return nil, models.Internal("failed to create vector index", err)
		}
		c.indexes[field] = idx
	}
	gopts := append([]graph.EngineOption{graph.WithLogger(c.logger)}, r.opts.GraphOptions...)
	c.graph = graph.NewEngine(graph.NewStore(), gopts...)
	if onDisk {
		c.store = r.opts.Storage
	}
	return c, nil
}

// Create registers a new, empty collection.
func (r *Registry) Create(ctx context.Context, name string, schema models.Schema, onDisk bool) (*models.CollectionInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		return nil, models.Validationf("invalid_schema", "at least one vector field is required")
	}
	if max := r.opts.MaxVectorFields; max > 0 && len(schema) > max {
		return nil, models.Validationf("invalid_schema", "too many named vectors per collection (max %d)", max)
	}
	for field, p := range schema {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		schema[field] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[name]; ok {
		return nil, models.CollectionExists(name)
	}
	if _, ok := r.deleting[name]; ok {
		return nil, models.NewError(models.KindState, "collection_deleting", "collection %q is being deleted", name)
	}

	c, err := r.newCollection(name, uuid.NewString(), schema, onDisk, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		rec := &storage.CollectionRecord{
			Name:       c.name,
			InstanceID: c.instanceID,
			Schema:     c.schema,
			OnDisk:     true,
			CreatedAt:  c.createdAt,
		}
		if err := c.store.CreateCollection(ctx, rec); err != nil {
			return nil, models.Internal("failed to persist collection", err)
		}
	}
	r.collections[name] = c
	r.logger.Info("collection created",
		zap.String("collection", name),
		zap.String("instance_id", c.instanceID),
		zap.Strings("fields", schema.Fields()),
		zap.Bool("on_disk", onDisk),
	)
	info := c.infoLocked()
	return &info, nil
}

// Get resolves a collection by name.
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	if !ok {
		return nil, models.CollectionNotFound(name)
	}
	return c, nil
}

// Describe returns the summary of one collection.
func (r *Registry) Describe(name string) (*models.CollectionInfo, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	info, err := c.Info()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns summaries of all collections sorted by name. Collections with
// a pending delete are left out.
func (r *Registry) List() []models.CollectionInfo {
	r.mu.RLock()
	cols := make([]*Collection, 0, len(r.collections))
	for name, c := range r.collections {
		if _, ok := r.deleting[name]; ok {
			continue
		}
		cols = append(cols, c)
	}
	r.mu.RUnlock()

	infos := make([]models.CollectionInfo, 0, len(cols))
	for _, c := range cols {
		info, err := c.Info()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

// Delete removes a collection with its points and edges. It waits for
// in-flight operations on the collection to release their locks; any
// operation that acquires the lock afterwards fails with a state error.
// Other collections stay available while it waits.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	c, ok := r.collections[name]
	if !ok {
		r.mu.Unlock()
		return models.CollectionNotFound(name)
	}
	if _, busy := r.deleting[name]; busy {
		r.mu.Unlock()
		return models.NewError(models.KindState, "collection_deleting", "collection %q is being deleted", name)
	}
	r.deleting[name] = struct{}{}
	r.mu.Unlock()

	err := c.markDeleted(ctx)

	r.mu.Lock()
	delete(r.deleting, name)
	if err == nil && r.collections[name] == c {
		delete(r.collections, name)
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.logger.Info("collection deleted", zap.String("collection", name), zap.String("instance_id", c.instanceID))
	return nil
}

// Load restores every persisted collection from storage. It is meant to run
// once at startup before the registry serves requests.
func (r *Registry) Load(ctx context.Context) error {
	if r.opts.Storage == nil {
		return nil
	}
	recs, err := r.opts.Storage.ListCollections(ctx)
	if err != nil {
		return models.Internal("failed to list persisted collections", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		c, err := r.newCollection(rec.Name, rec.InstanceID, rec.Schema, true, rec.CreatedAt)
		if err != nil {
			return err
		}
		points, err := r.opts.Storage.LoadPoints(ctx, rec.Name)
		if err != nil {
			return models.Internal("failed to load points of "+rec.Name, err)
		}
		if err := c.restorePoints(ctx, points); err != nil {
			return err
		}
		edges, err := r.opts.Storage.LoadEdges(ctx, rec.Name)
		if err != nil {
			return models.Internal("failed to load edges of "+rec.Name, err)
		}
		for _, e := range edges {
			if _, err := c.graph.Store().AddEdge(e.FromID, e.ToID, e.Relationship, e.Weight); err != nil {
				return models.Internal("invalid persisted edge in "+rec.Name, err)
			}
		}
		r.collections[rec.Name] = c
		r.logger.Info("collection loaded",
			zap.String("collection", rec.Name),
			zap.Int("points", len(points)),
			zap.Int("edges", len(edges)),
		)
	}
	return nil
}

// Close releases every collection's indexes.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.collections {
		c.mu.Lock()
		for _, idx := range c.indexes {
			_ = idx.Close()
		}
		c.mu.Unlock()
	}
	return nil
}

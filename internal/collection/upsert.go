package collection

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// validateWrites checks every write against the schema. Nothing is applied
// unless the whole batch passes.
func validateWrites(schema models.Schema, writes []models.PointWrite) error {
	for i, w := range writes {
		if w.ID == "" {
			return fmt.Errorf("point %d: %w", i, models.Validationf("invalid_id", "point id cannot be empty"))
		}
		if len(w.Vectors) == 0 {
			return models.Validationf("invalid_vector", "point %q carries no vectors", w.ID)
		}
		for field, vec := range w.Vectors {
			p, ok := schema[field]
			if !ok {
				return fmt.Errorf("point %q: %w", w.ID, models.UnknownVectorField(field))
			}
			if len(vec) != p.Size {
				return fmt.Errorf("point %q: %w", w.ID, models.DimensionMismatch(field, p.Size, len(vec)))
			}
			for j, x := range vec {
				if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
					return models.Validationf("invalid_vector", "point %q vector %q has a non-finite value at %d", w.ID, field, j)
				}
			}
		}
	}
	return nil
}

// Upsert validates the whole batch, then merges it into the collection under
// the write lock. Vectors are merged per field into existing points; a
// provided payload replaces the stored one and an omitted payload keeps it.
// Writes sharing an id apply in order. For on_disk collections the merged
// points are persisted before any in-memory change, so a storage failure
// leaves the collection untouched.
func (c *Collection) Upsert(ctx context.Context, writes []models.PointWrite) (*models.UpsertResult, error) {
	if len(writes) == 0 {
		return nil, models.Validationf("invalid_points", "points cannot be empty")
	}
	if c.maxBatch > 0 && len(writes) > c.maxBatch {
		return nil, models.Validationf("invalid_points", "batch of %d points exceeds the limit of %d", len(writes), c.maxBatch)
	}
	if err := validateWrites(c.schema, writes); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return nil, models.CollectionDeleted(c.name)
	}

	result := &models.UpsertResult{}
	staged := make(map[string]*models.Point, len(writes))
	order := make([]string, 0, len(writes))
	for _, w := range writes {
		p, ok := staged[w.ID]
		if !ok {
			if existing, found := c.points[w.ID]; found {
				p = existing.Clone()
			} else {
				p = &models.Point{ID: w.ID, Vectors: make(map[string][]float32, len(w.Vectors))}
			}
			staged[w.ID] = p
			order = append(order, w.ID)
		}
		if ok || c.points[w.ID] != nil {
			result.Updated++
		} else {
			result.Inserted++
		}
		for field, vec := range w.Vectors {
			p.Vectors[field] = append([]float32(nil), vec...)
		}
		if w.Payload != nil {
			v := w.Payload.Clone()
			p.Payload = &v
		}
	}

	if c.store != nil {
		points := make([]*models.Point, len(order))
		for i, id := range order {
			points[i] = staged[id]
		}
		if err := c.store.UpsertPoints(ctx, c.name, points); err != nil {
			return nil, models.Internal("failed to persist points", err)
		}
	}

	if err := c.applyLocked(ctx, writes, staged, order); err != nil {
		return nil, err
	}
	c.logger.Debug("upsert applied",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

// applyLocked installs staged points and feeds the per-field indexes in write
// order so that first-insertion slots follow the batch order.
func (c *Collection) applyLocked(ctx context.Context, writes []models.PointWrite, staged map[string]*models.Point, order []string) error {
	ids := make(map[string][]string)
	vecs := make(map[string][][]float32)
	for _, w := range writes {
		for _, field := range sortedFields(w.Vectors) {
			ids[field] = append(ids[field], w.ID)
			vecs[field] = append(vecs[field], w.Vectors[field])
		}
	}
	for field, fieldIDs := range ids {
		if err := c.indexes[field].Add(ctx, fieldIDs, vecs[field]); err != nil {
			// Unreachable after validateWrites; the index may be partially updated.
			return models.Internal(fmt.Sprintf("failed to index field %q", field), err)
		}
	}
	for _, id := range order {
		c.points[id] = staged[id]
	}
	return nil
}

// restorePoints loads persisted points without writing them back.
func (c *Collection) restorePoints(ctx context.Context, points []*models.Point) error {
	if len(points) == 0 {
		return nil
	}
	writes := make([]models.PointWrite, len(points))
	staged := make(map[string]*models.Point, len(points))
	order := make([]string, len(points))
	for i, p := range points {
		writes[i] = models.PointWrite{ID: p.ID, Vectors: p.Vectors, Payload: p.Payload}
		staged[p.ID] = p
		order[i] = p.ID
	}
	if err := validateWrites(c.schema, writes); err != nil {
		return models.Internal("persisted points do not match the schema of "+c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ctx, writes, staged, order)
}

func sortedFields(m map[string][]float32) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

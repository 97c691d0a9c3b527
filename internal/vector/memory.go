package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// MemoryIndex is an in-memory vector index using exact brute-force search.
// Slots are assigned in first-insertion order; replacing a vector keeps its
// slot so rankings stay stable across updates.
type MemoryIndex struct {
	dimensions int
	distance   models.Distance
	score      scorer
	ids        []string
	vectors    [][]float32
	norms      []float64
	slots      map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension
// and distance metric.
func NewMemoryIndex(dimensions int, distance models.Distance) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	d, err := models.ParseDistance(string(distance))
	if err != nil {
		return nil, err
	}
	return &MemoryIndex{
		dimensions: dimensions,
		distance:   d,
		score:      scorerFor(d),
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		norms:      make([]float64, 0),
		slots:      make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the fixed vector length.
func (m *MemoryIndex) Dimensions() int { return m.dimensions }

// Distance returns the metric used for ranking.
func (m *MemoryIndex) Distance() models.Distance { return m.distance }

// Add inserts or replaces vectors with the given IDs. The whole call is
// rejected if any vector has the wrong dimension.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i, vec := range vectors {
		if ids[i] == "" {
			return models.Validationf("invalid_id", "point id cannot be empty")
		}
		if len(vec) != m.dimensions {
			return models.DimensionMismatch("", m.dimensions, len(vec))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		norm := L2Norm(vec)
		if slot, ok := m.slots[id]; ok {
			m.vectors[slot] = vec
			m.norms[slot] = norm
			continue
		}
		m.slots[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
		m.norms = append(m.norms, norm)
	}
	return nil
}

// Search returns the top-k stored vectors for query. L2 results are ordered by
// ascending squared distance, Cosine and Dot by descending similarity. Ties
// are broken by insertion order, then id.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, models.DimensionMismatch("", m.dimensions, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchLocked(query, k), nil
}

// SearchByID ranks against the stored vector of id. The point itself is part
// of its own result set.
func (m *MemoryIndex) SearchByID(ctx context.Context, id string, k int) ([]*VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[id]
	if !ok {
		return nil, models.PointNotFound(id, "")
	}
	return m.searchLocked(m.vectors[slot], k), nil
}

// SearchBatch answers each query independently and returns results in input
// order. All queries observe the same index state.
func (m *MemoryIndex) SearchBatch(ctx context.Context, queries [][]float32, k int) ([][]*VectorResult, error) {
	for _, q := range queries {
		if len(q) != m.dimensions {
			return nil, models.DimensionMismatch("", m.dimensions, len(q))
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]*VectorResult, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.searchLocked(q, k)
	}
	return out, nil
}

type scored struct {
	slot  int
	score float64
}

func (m *MemoryIndex) searchLocked(query []float32, k int) []*VectorResult {
	if k <= 0 || len(m.ids) == 0 {
		return []*VectorResult{}
	}
	qn := L2Norm(query)
	scores := make([]scored, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = scored{slot: i, score: m.score(query, qn, vec, m.norms[i])}
	}
	higher := m.distance.HigherIsCloser()
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.score != b.score {
			if higher {
				return a.score > b.score
			}
			return a.score < b.score
		}
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		return m.ids[a.slot] < m.ids[b.slot]
	})
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		result[i] = &VectorResult{ID: m.ids[scores[i].slot], Score: scores[i].score}
	}
	return result
}

// Get returns a copy of the stored vector for id.
func (m *MemoryIndex) Get(id string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[id]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), m.vectors[slot]...), true
}

// IDs returns the stored ids in insertion order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.ids...)
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

// Package graph provides the per-collection relationship graph: an adjacency
// store of directed, labeled, weighted edges and the traversal engine on top.
package graph

import (
	"math"
	"sync"

	"github.com/hyperjump/vectorgraph/internal/models"
)

type edgeKey struct {
	from, to uint32
	rel      string
}

type edgeRecord struct {
	from, to uint32
	rel      string
	weight   float64
}

// Store holds edges with a forward (from → edges) and a reverse (to → edges)
// index. Node ids are interned to dense uint32 ordinals the first time an
// edge references them; nodes are implicit and never declared.
type Store struct {
	mu       sync.RWMutex
	ordinals map[string]uint32
	names    []string
	edges    []edgeRecord
	byKey    map[edgeKey]int
	out      map[uint32][]int
	in       map[uint32][]int
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		ordinals: make(map[string]uint32),
		byKey:    make(map[edgeKey]int),
		out:      make(map[uint32][]int),
		in:       make(map[uint32][]int),
	}
}

// ValidateEdge checks ids, label and weight without touching the store.
func ValidateEdge(from, to, rel string, weight float64) error {
	if from == "" || to == "" {
		return models.Validationf("invalid_id", "from_id and to_id are required")
	}
	if rel == "" {
		return models.Validationf("invalid_relationship", "relationship is required")
	}
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return models.InvalidWeight(weight)
	}
	return nil
}

// AddEdge inserts the edge, or overwrites the weight of an existing edge with
// the same (from, to, relationship). It reports whether a new edge was created.
func (s *Store) AddEdge(from, to, rel string, weight float64) (bool, error) {
	if err := ValidateEdge(from, to, rel, weight); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.intern(from)
	t := s.intern(to)
	key := edgeKey{from: f, to: t, rel: rel}
	if i, ok := s.byKey[key]; ok {
		s.edges[i].weight = weight
		return false, nil
	}
	i := len(s.edges)
	s.edges = append(s.edges, edgeRecord{from: f, to: t, rel: rel, weight: weight})
	s.byKey[key] = i
	s.out[f] = append(s.out[f], i)
	s.in[t] = append(s.in[t], i)
	return true, nil
}

func (s *Store) intern(id string) uint32 {
	if o, ok := s.ordinals[id]; ok {
		return o
	}
	o := uint32(len(s.names))
	s.ordinals[id] = o
	s.names = append(s.names, id)
	return o
}

func (s *Store) toModel(e edgeRecord) models.Edge {
	return models.Edge{
		FromID:       s.names[e.from],
		ToID:         s.names[e.to],
		Relationship: e.rel,
		Weight:       e.weight,
	}
}

func (s *Store) collect(index map[uint32][]int, id string) []models.Edge {
	o, ok := s.ordinals[id]
	if !ok {
		return []models.Edge{}
	}
	refs := index[o]
	out := make([]models.Edge, len(refs))
	for i, ref := range refs {
		out[i] = s.toModel(s.edges[ref])
	}
	return out
}

// EdgesFrom returns the outgoing edges of id in insertion order.
func (s *Store) EdgesFrom(id string) []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.out, id)
}

// EdgesTo returns the incoming edges of id in insertion order.
func (s *Store) EdgesTo(id string) []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.in, id)
}

// Relationships returns the outgoing then incoming edges of id. A self-loop
// appears in both halves.
func (s *Store) Relationships(id string) []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(s.collect(s.out, id), s.collect(s.in, id)...)
}

// Nodes returns every id referenced by an edge, in first-seen order.
func (s *Store) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Edges returns all edges in first-insertion order with current weights.
func (s *Store) Edges() []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Edge, len(s.edges))
	for i, e := range s.edges {
		out[i] = s.toModel(e)
	}
	return out
}

// NodeCount returns the number of distinct node ids.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// EdgeCount returns the number of distinct edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// neighbor is one adjacency step as seen from a node.
type neighbor struct {
	node   uint32
	rel    string
	weight float64
}

// adjacentLocked lists the steps leaving node o in the given direction.
// Callers must hold at least the read lock.
func (s *Store) adjacentLocked(o uint32, dir models.Direction) []neighbor {
	var out []neighbor
	if dir == models.DirectionOutwards || dir == models.DirectionBoth {
		for _, ref := range s.out[o] {
			e := s.edges[ref]
			out = append(out, neighbor{node: e.to, rel: e.rel, weight: e.weight})
		}
	}
	if dir == models.DirectionInwards || dir == models.DirectionBoth {
		for _, ref := range s.in[o] {
			e := s.edges[ref]
			out = append(out, neighbor{node: e.from, rel: e.rel, weight: e.weight})
		}
	}
	return out
}

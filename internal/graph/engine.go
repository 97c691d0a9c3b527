package graph

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hyperjump/vectorgraph/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultMaxVisited caps how many nodes one traversal may discover.
	DefaultMaxVisited = 100000
	// DefaultStrongThreshold is the weight threshold for StronglyConnected
	// when the caller passes a negative value.
	DefaultStrongThreshold = 0.7
)

// Engine answers traversal, path and neighbor queries over a Store.
type Engine struct {
	store      *Store
	maxVisited int
	timeout    time.Duration
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxVisited sets the node visit ceiling for traversals and path searches.
func WithMaxVisited(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxVisited = n
		}
	}
}

// WithTimeout bounds each traversal or path search by a deadline.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the logger used for truncation notices.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a graph engine over store.
func NewEngine(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		maxVisited: DefaultMaxVisited,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying adjacency store.
func (e *Engine) Store() *Store { return e.store }

func (e *Engine) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func follows(n neighbor, minWeight float64, rel string) bool {
	if n.weight < minWeight {
		return false
	}
	return rel == "" || n.rel == rel
}

// Traverse runs a breadth-first exploration from req.StartID and returns the
// reached node ids in discovery order, start included. Hitting the visit
// ceiling or the deadline stops early and marks the result truncated.
func (e *Engine) Traverse(ctx context.Context, req models.TraversalRequest) (*models.TraversalResult, error) {
	if req.StartID == "" {
		return nil, models.Validationf("invalid_id", "start_id is required")
	}
	if req.MaxHops < 0 {
		return nil, models.Validationf("invalid_max_hops", "max_hops cannot be negative, got %d", req.MaxHops)
	}
	dir, err := models.ParseDirection(string(req.Direction))
	if err != nil {
		return nil, err
	}

	result := &models.TraversalResult{Nodes: []string{req.StartID}}
	if req.MaxHops == 0 {
		return result, nil
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	start, ok := e.store.ordinals[req.StartID]
	if !ok {
		return result, nil
	}

	type item struct {
		node uint32
		hops int
	}
	visited := roaring.New()
	visited.Add(start)
	queue := []item{{node: start}}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= req.MaxHops {
			continue
		}
		for _, n := range e.store.adjacentLocked(cur.node, dir) {
			if !follows(n, req.MinWeight, req.RelationshipFilter) || visited.Contains(n.node) {
				continue
			}
			if len(result.Nodes) >= e.maxVisited {
				result.Truncated = true
				break
			}
			visited.Add(n.node)
			result.Nodes = append(result.Nodes, e.store.names[n.node])
			queue = append(queue, item{node: n.node, hops: cur.hops + 1})
		}
		if result.Truncated {
			break
		}
	}
	if result.Truncated {
		e.logger.Warn("traversal truncated",
			zap.String("start_id", req.StartID),
			zap.Int("visited", len(result.Nodes)),
			zap.Int("max_visited", e.maxVisited),
		)
	}
	return result, nil
}

// ShortestPath finds a minimum-hop directed path over outgoing edges. When
// weighted is set, it instead minimizes the sum of 1/weight (zero-weight edges
// are not traversable). An unreachable end yields Found=false, not an error.
func (e *Engine) ShortestPath(ctx context.Context, startID, endID string, weighted bool) (*models.PathResult, error) {
	if startID == "" || endID == "" {
		return nil, models.Validationf("invalid_id", "start_id and end_id are required")
	}
	if startID == endID {
		return &models.PathResult{Path: []string{startID}, Found: true}, nil
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	start, ok := e.store.ordinals[startID]
	if !ok {
		return &models.PathResult{Path: []string{}}, nil
	}
	end, ok := e.store.ordinals[endID]
	if !ok {
		return &models.PathResult{Path: []string{}}, nil
	}

	var (
		parents map[uint32]uint32
		cost    float64
		found   bool
		err     error
	)
	if weighted {
		parents, cost, found, err = e.dijkstraLocked(ctx, start, end)
	} else {
		parents, found, err = e.bfsLocked(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("shortest path from %q to %q: %w", startID, endID, err)
	}
	if !found {
		return &models.PathResult{Path: []string{}}, nil
	}

	var rev []string
	for at := end; ; at = parents[at] {
		rev = append(rev, e.store.names[at])
		if at == start {
			break
		}
	}
	path := make([]string, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	res := &models.PathResult{Path: path, Length: len(path) - 1, Found: true}
	if weighted {
		res.Cost = cost
	} else {
		res.Cost = float64(res.Length)
	}
	return res, nil
}

func (e *Engine) bfsLocked(ctx context.Context, start, end uint32) (map[uint32]uint32, bool, error) {
	parents := make(map[uint32]uint32)
	visited := roaring.New()
	visited.Add(start)
	queue := []uint32{start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if int(visited.GetCardinality()) > e.maxVisited {
			return nil, false, models.NewError(models.KindState, "search_budget_exceeded",
				"path search exceeded %d visited nodes", e.maxVisited)
		}
		cur := queue[0]
		queue = queue[1:]
		for _, n := range e.store.adjacentLocked(cur, models.DirectionOutwards) {
			if visited.Contains(n.node) {
				continue
			}
			visited.Add(n.node)
			parents[n.node] = cur
			if n.node == end {
				return parents, true, nil
			}
			queue = append(queue, n.node)
		}
	}
	return parents, false, nil
}

type pqItem struct {
	node uint32
	cost float64
	seq  int
}

type pathQueue []pqItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pqItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

func (e *Engine) dijkstraLocked(ctx context.Context, start, end uint32) (map[uint32]uint32, float64, bool, error) {
	dist := map[uint32]float64{start: 0}
	parents := make(map[uint32]uint32)
	settled := roaring.New()
	pq := &pathQueue{{node: start}}
	seq := 1
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, false, err
		}
		cur := heap.Pop(pq).(pqItem)
		if settled.Contains(cur.node) {
			continue
		}
		settled.Add(cur.node)
		if cur.node == end {
			return parents, cur.cost, true, nil
		}
		if int(settled.GetCardinality()) > e.maxVisited {
			return nil, 0, false, models.NewError(models.KindState, "search_budget_exceeded",
				"path search exceeded %d visited nodes", e.maxVisited)
		}
		for _, n := range e.store.adjacentLocked(cur.node, models.DirectionOutwards) {
			if n.weight <= 0 || settled.Contains(n.node) {
				continue
			}
			next := cur.cost + 1/n.weight
			if d, ok := dist[n.node]; ok && d <= next {
				continue
			}
			dist[n.node] = next
			parents[n.node] = cur.node
			heap.Push(pq, pqItem{node: n.node, cost: next, seq: seq})
			seq++
		}
	}
	return parents, 0, false, nil
}

// distinctNeighbors collects neighbor ids of id over edges accepted by keep,
// in first-seen order with duplicates collapsed.
func (e *Engine) distinctNeighbors(id string, dirs []models.Direction, keep func(neighbor) bool) *models.NeighborResult {
	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	res := &models.NeighborResult{Nodes: []string{}}
	o, ok := e.store.ordinals[id]
	if !ok {
		return res
	}
	seen := roaring.New()
	for _, dir := range dirs {
		for _, n := range e.store.adjacentLocked(o, dir) {
			if !keep(n) || seen.Contains(n.node) {
				continue
			}
			seen.Add(n.node)
			res.Nodes = append(res.Nodes, e.store.names[n.node])
		}
	}
	res.Count = len(res.Nodes)
	return res
}

// RelatedByWeight returns the direct outgoing neighbors of id whose edge
// weight is at least minWeight.
func (e *Engine) RelatedByWeight(id string, minWeight float64) *models.NeighborResult {
	return e.distinctNeighbors(id, []models.Direction{models.DirectionOutwards}, func(n neighbor) bool {
		return n.weight >= minWeight
	})
}

// StronglyConnected returns outgoing targets then incoming sources of id over
// edges with weight at least threshold. A negative threshold selects
// DefaultStrongThreshold.
func (e *Engine) StronglyConnected(id string, threshold float64) *models.NeighborResult {
	if threshold < 0 {
		threshold = DefaultStrongThreshold
	}
	dirs := []models.Direction{models.DirectionOutwards, models.DirectionInwards}
	return e.distinctNeighbors(id, dirs, func(n neighbor) bool {
		return n.weight >= threshold
	})
}

// ByRelationship returns the neighbors of id over edges labeled rel in the
// given direction.
func (e *Engine) ByRelationship(id, rel string, dir models.Direction) (*models.NeighborResult, error) {
	if rel == "" {
		return nil, models.Validationf("invalid_relationship", "relationship is required")
	}
	d, err := models.ParseDirection(string(dir))
	if err != nil {
		return nil, err
	}
	dirs := []models.Direction{d}
	if d == models.DirectionBoth {
		dirs = []models.Direction{models.DirectionOutwards, models.DirectionInwards}
	}
	return e.distinctNeighbors(id, dirs, func(n neighbor) bool {
		return n.rel == rel
	}), nil
}

// Dump returns every node and edge of the graph.
func (e *Engine) Dump() models.GraphDump {
	return models.GraphDump{Nodes: e.store.Nodes(), Edges: e.store.Edges()}
}

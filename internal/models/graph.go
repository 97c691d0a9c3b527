package models

import "strings"

// Edge is a directed, labeled, weighted relationship between two point ids.
type Edge struct {
	FromID       string  `json:"from_id"`
	ToID         string  `json:"to_id"`
	Relationship string  `json:"relationship"`
	Weight       float64 `json:"weight"`
}

// Direction selects which adjacency a traversal follows.
type Direction string

const (
	DirectionOutwards Direction = "outwards"
	DirectionInwards  Direction = "inwards"
	DirectionBoth     Direction = "both"
)

// ParseDirection accepts outwards/inwards/both (and out/in), defaulting to
// outwards when s is empty.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outwards", "outward", "out":
		return DirectionOutwards, nil
	case "inwards", "inward", "in":
		return DirectionInwards, nil
	case "both":
		return DirectionBoth, nil
	default:
		return "", Validationf("invalid_direction", "direction must be outwards, inwards or both, got %q", s)
	}
}

// TraversalRequest configures a bounded breadth-first exploration.
type TraversalRequest struct {
	StartID            string
	Direction          Direction
	MaxHops            int
	MinWeight          float64
	RelationshipFilter string
}

// TraversalResult lists reached node ids in discovery order. Truncated is set
// when the visit ceiling or deadline stopped the exploration early.
type TraversalResult struct {
	Nodes     []string
	Truncated bool
}

// PathResult is the outcome of a shortest-path query. Found is false when the
// end node is unreachable; Path is then empty.
type PathResult struct {
	Path   []string
	Length int
	Cost   float64
	Found  bool
}

// NeighborResult lists distinct neighbor ids in first-seen order.
type NeighborResult struct {
	Nodes []string
	Count int
}

// GraphDump is the full node and edge listing of one collection's graph.
type GraphDump struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/collection"
	"github.com/hyperjump/vectorgraph/internal/models"
)

const defaultTraversalHops = 2

type relationshipRequest struct {
	FromID       string   `json:"from_id"`
	ToID         string   `json:"to_id"`
	Relationship string   `json:"relationship"`
	Weight       *float64 `json:"weight,omitempty"`
}

type traverseRequest struct {
	StartID            string  `json:"start_id"`
	Direction          string  `json:"direction,omitempty"`
	MaxHops            *int    `json:"max_hops,omitempty"`
	MinWeight          float64 `json:"min_weight,omitempty"`
	RelationshipFilter string  `json:"relationship_filter,omitempty"`
	// Relationship is accepted as a shorter alias of relationship_filter.
	Relationship string `json:"relationship,omitempty"`
}

type shortestPathRequest struct {
	StartID  string `json:"start_id"`
	EndID    string `json:"end_id"`
	Weighted bool   `json:"weighted,omitempty"`
}

// collectionFor resolves the {name} path parameter, writing the error
// response itself when the collection is missing.
func (s *Server) collectionFor(w http.ResponseWriter, r *http.Request) (*collection.Collection, bool) {
	c, err := s.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return c, true
}

// floatParam reads an optional float query parameter.
func floatParam(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, models.Validationf("invalid_parameter", "%s must be a number, got %q", key, raw)
	}
	return v, nil
}

func (s *Server) handleAddRelationship(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	var req relationshipRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	edge := models.Edge{FromID: req.FromID, ToID: req.ToID, Relationship: req.Relationship, Weight: 1.0}
	if req.Weight != nil {
		edge.Weight = *req.Weight
	}
	created, err := c.AddRelationship(r.Context(), edge)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"created":      created,
		"relationship": edge,
	})
}

func (s *Server) handleNodeRelationships(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	edges, err := c.Relationships(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"node_id":       id,
		"relationships": edges,
		"count":         len(edges),
	})
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	var req traverseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	hops := defaultTraversalHops
	if req.MaxHops != nil {
		hops = *req.MaxHops
	}
	dir, err := models.ParseDirection(req.Direction)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filter := req.RelationshipFilter
	if filter == "" {
		filter = req.Relationship
	}
	res, err := c.Traverse(r.Context(), models.TraversalRequest{
		StartID:            req.StartID,
		Direction:          dir,
		MaxHops:            hops,
		MinWeight:          req.MinWeight,
		RelationshipFilter: filter,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("traversal",
		zap.String("collection", c.Name()),
		zap.String("start_id", req.StartID),
		zap.Int("visited", len(res.Nodes)),
		zap.Bool("truncated", res.Truncated),
	)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"start_id":   req.StartID,
		"direction":  dir,
		"max_hops":   hops,
		"min_weight": req.MinWeight,
		"nodes":      res.Nodes,
		"count":      len(res.Nodes),
		"truncated":  res.Truncated,
	})
}

func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	var req shortestPathRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := c.ShortestPath(r.Context(), req.StartID, req.EndID, req.Weighted)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	body := map[string]interface{}{
		"status":   "ok",
		"start_id": req.StartID,
		"end_id":   req.EndID,
		"found":    res.Found,
		"path":     res.Path,
	}
	if res.Found {
		body["path_length"] = res.Length
		body["cost"] = res.Cost
	}
	s.respondJSON(w, http.StatusOK, body)
}

// respondNeighbors writes a neighbor listing under key, merged with the
// echoed request parameters in extra.
func (s *Server) respondNeighbors(w http.ResponseWriter, r *http.Request, key string, extra map[string]interface{}, res *models.NeighborResult, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	body := map[string]interface{}{
		"status":   "ok",
		"point_id": chi.URLParam(r, "id"),
		key:        res.Nodes,
		"count":    res.Count,
	}
	for k, v := range extra {
		body[k] = v
	}
	s.respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	minWeight, err := floatParam(r, "min_weight", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := c.RelatedByWeight(chi.URLParam(r, "id"), minWeight)
	s.respondNeighbors(w, r, "related_nodes", map[string]interface{}{"min_weight": minWeight}, res, err)
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	threshold, err := floatParam(r, "threshold", s.config.Graph.StrongWeightThreshold)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := c.StronglyConnected(chi.URLParam(r, "id"), threshold)
	s.respondNeighbors(w, r, "connected_nodes", map[string]interface{}{"threshold": threshold}, res, err)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rel := q.Get("relationship")
	res, err := c.ByRelationship(chi.URLParam(r, "id"), rel, models.Direction(q.Get("direction")))
	s.respondNeighbors(w, r, "neighbors", map[string]interface{}{"relationship": rel}, res, err)
}

func (s *Server) handleGraphDump(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collectionFor(w, r)
	if !ok {
		return
	}
	dump, err := c.Graph()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"nodes":  dump.Nodes,
		"edges":  dump.Edges,
	})
}

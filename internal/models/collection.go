// Package models defines the core data structures shared by the vector index,
// the graph layer, the collection registry and the HTTP API.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultVectorField is the field name used for collections created with a
// single unnamed vector config.
const DefaultVectorField = "default"

// Distance is the metric that fixes result ordering for a vector field.
type Distance string

const (
	DistanceL2     Distance = "L2"
	DistanceCosine Distance = "Cosine"
	DistanceDot    Distance = "Dot"
)

// ParseDistance accepts the canonical names case-insensitively, plus
// "Euclid"/"Euclidean" as aliases for L2.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclid", "euclidean":
		return DistanceL2, nil
	case "cosine":
		return DistanceCosine, nil
	case "dot":
		return DistanceDot, nil
	default:
		return "", Validationf("invalid_distance", "unknown distance %q (supported: L2, Cosine, Dot)", s)
	}
}

// HigherIsCloser reports whether larger scores mean more similar.
func (d Distance) HigherIsCloser() bool {
	return d == DistanceCosine || d == DistanceDot
}

// VectorParams describes one named vector field.
type VectorParams struct {
	Size     int      `json:"size" yaml:"size"`
	Distance Distance `json:"distance" yaml:"distance"`
}

// Validate checks the size and normalizes the distance name.
func (p *VectorParams) Validate() error {
	if p.Size <= 0 {
		return Validationf("invalid_schema", "vector size must be positive, got %d", p.Size)
	}
	d, err := ParseDistance(string(p.Distance))
	if err != nil {
		return err
	}
	p.Distance = d
	return nil
}

// Schema maps vector field names to their params. Immutable once a collection
// is created.
type Schema map[string]VectorParams

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of s.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// OnDisk is the storage-locality flag. It decodes from the string literals
// "true"/"false" and also from JSON booleans.
type OnDisk bool

func (o *OnDisk) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`:
		*o = true
		return nil
	case "false", `"false"`, "null", `""`:
		*o = false
		return nil
	}
	return Validationf("invalid_on_disk", "on_disk must be \"true\" or \"false\", got %s", string(data))
}

// CreateCollectionRequest is the body of PUT /collections/{name}. Vectors is
// either a single VectorParams or a mapping from field name to VectorParams.
type CreateCollectionRequest struct {
	Vectors json.RawMessage `json:"vectors"`
	OnDisk  OnDisk          `json:"on_disk"`
}

// Schema resolves the single-vs-named vectors union into a validated Schema.
func (r *CreateCollectionRequest) Schema(maxFields int) (Schema, error) {
	if len(bytes.TrimSpace(r.Vectors)) == 0 {
		return nil, Validationf("invalid_schema", "vectors config is required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Vectors, &fields); err != nil {
		return nil, Validationf("invalid_schema", "vectors must be an object: %v", err)
	}

	multi := false
	for _, raw := range fields {
		if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '{' {
			multi = true
			break
		}
	}

	schema := make(Schema)
	if !multi {
		var p VectorParams
		if err := json.Unmarshal(r.Vectors, &p); err != nil {
			return nil, Validationf("invalid_schema", "invalid vector params: %v", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		schema[DefaultVectorField] = p
		return schema, nil
	}

	if maxFields > 0 && len(fields) > maxFields {
		return nil, Validationf("invalid_schema", "too many named vectors per collection (max %d)", maxFields)
	}
	for name, raw := range fields {
		if strings.TrimSpace(name) == "" {
			return nil, Validationf("invalid_schema", "vector field name cannot be empty")
		}
		var p VectorParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, Validationf("invalid_schema", "invalid vector params for %q: %v", name, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		schema[name] = p
	}
	return schema, nil
}

// CollectionInfo summarizes a collection for list/describe responses.
type CollectionInfo struct {
	Name        string    `json:"name"`
	InstanceID  string    `json:"instance_id"`
	Vectors     Schema    `json:"vectors"`
	OnDisk      bool      `json:"on_disk"`
	PointsCount int       `json:"points_count"`
	EdgesCount  int       `json:"edges_count"`
	CreatedAt   time.Time `json:"created_at"`
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Point is a stored point: one vector per named field plus an optional payload.
type Point struct {
	ID      string               `json:"id"`
	Vectors map[string][]float32 `json:"vector"`
	Payload *Value               `json:"payload,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Point) Clone() *Point {
	out := &Point{ID: p.ID, Vectors: make(map[string][]float32, len(p.Vectors))}
	for field, vec := range p.Vectors {
		out.Vectors[field] = append([]float32(nil), vec...)
	}
	if p.Payload != nil {
		v := p.Payload.Clone()
		out.Payload = &v
	}
	return out
}

// PointWrite is one normalized upsert item: vectors are always keyed by field
// name. A nil Payload leaves any existing payload untouched.
type PointWrite struct {
	ID      string
	Vectors map[string][]float32
	Payload *Value
}

// UpsertResult reports how many writes created new points versus updated
// existing ones.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// UpsertRequest is the body of POST /upsert. Points is either a list of
// point objects or a batch object {ids, vectors, payloads}.
type UpsertRequest struct {
	CollectionName string          `json:"collection_name"`
	Points         json.RawMessage `json:"points"`
}

type pointInput struct {
	ID      json.RawMessage `json:"id"`
	Vector  json.RawMessage `json:"vector"`
	Payload *Value          `json:"payload,omitempty"`
}

type batchInput struct {
	IDs      []json.RawMessage `json:"ids"`
	Vectors  []json.RawMessage `json:"vectors"`
	Payloads []*Value          `json:"payloads,omitempty"`
}

// Writes resolves the points union into an ordered list of PointWrite. Only
// shape is checked here; schema conformance is the upsert pipeline's job.
func (r *UpsertRequest) Writes() ([]PointWrite, error) {
	raw := bytes.TrimSpace(r.Points)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, Validationf("invalid_points", "points are required")
	}

	switch raw[0] {
	case '[':
		var items []pointInput
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, Validationf("invalid_points", "invalid points list: %v", err)
		}
		writes := make([]PointWrite, 0, len(items))
		for i, item := range items {
			id, err := parsePointID(item.ID)
			if err != nil {
				return nil, fmt.Errorf("points[%d]: %w", i, err)
			}
			vectors, err := ParseVectorInput(item.Vector)
			if err != nil {
				return nil, fmt.Errorf("points[%d]: %w", i, err)
			}
			writes = append(writes, PointWrite{ID: id, Vectors: vectors, Payload: item.Payload})
		}
		if len(writes) == 0 {
			return nil, Validationf("invalid_points", "points cannot be empty")
		}
		return writes, nil
	case '{':
		var batch batchInput
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, Validationf("invalid_points", "invalid points batch: %v", err)
		}
		if len(batch.IDs) == 0 {
			return nil, Validationf("invalid_points", "points cannot be empty")
		}
		if len(batch.IDs) != len(batch.Vectors) {
			return nil, Validationf("invalid_points", "batch has %d ids but %d vectors", len(batch.IDs), len(batch.Vectors))
		}
		if batch.Payloads != nil && len(batch.Payloads) != len(batch.IDs) {
			return nil, Validationf("invalid_points", "batch has %d ids but %d payloads", len(batch.IDs), len(batch.Payloads))
		}
		writes := make([]PointWrite, 0, len(batch.IDs))
		for i := range batch.IDs {
			id, err := parsePointID(batch.IDs[i])
			if err != nil {
				return nil, fmt.Errorf("ids[%d]: %w", i, err)
			}
			vectors, err := ParseVectorInput(batch.Vectors[i])
			if err != nil {
				return nil, fmt.Errorf("vectors[%d]: %w", i, err)
			}
			w := PointWrite{ID: id, Vectors: vectors}
			if batch.Payloads != nil {
				w.Payload = batch.Payloads[i]
			}
			writes = append(writes, w)
		}
		return writes, nil
	default:
		return nil, Validationf("invalid_points", "points must be a list or a batch object")
	}
}

func parsePointID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", Validationf("invalid_id", "point id must be a string, got %s", string(raw))
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", Validationf("invalid_id", "invalid point id: %v", err)
	}
	if id == "" {
		return "", Validationf("invalid_id", "point id cannot be empty")
	}
	return id, nil
}

// ParseVectorInput accepts a flat numeric list (stored under the default
// field) or a mapping from field name to numeric list.
func ParseVectorInput(raw json.RawMessage) (map[string][]float32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, Validationf("invalid_vector", "vector is required")
	}
	switch raw[0] {
	case '[':
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, Validationf("invalid_vector", "vector must be a list of numbers: %v", err)
		}
		return map[string][]float32{DefaultVectorField: vec}, nil
	case '{':
		var named map[string][]float32
		if err := json.Unmarshal(raw, &named); err != nil {
			return nil, Validationf("invalid_vector", "named vectors must map field names to lists of numbers: %v", err)
		}
		if len(named) == 0 {
			return nil, Validationf("invalid_vector", "named vectors cannot be empty")
		}
		return named, nil
	default:
		return nil, Validationf("invalid_vector", "vector must be a list or a mapping of named vectors")
	}
}

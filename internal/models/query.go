package models

import (
	"encoding/json"
	"fmt"
)

// QueryRequest is a similarity query. Exactly one of QueryVectors and
// QueryPointIDs must be set.
type QueryRequest struct {
	CollectionName string      `json:"collection_name,omitempty"`
	QueryVectors   [][]float32 `json:"query_vectors,omitempty"`
	QueryPointIDs  []string    `json:"query_pointids,omitempty"`
	Using          string      `json:"using,omitempty"`
	TopK           *int        `json:"top_k,omitempty"`
}

// ByVector reports whether the request queries by vectors.
func (q *QueryRequest) ByVector() bool { return len(q.QueryVectors) > 0 }

// Len is the number of queries carried by the request.
func (q *QueryRequest) Len() int {
	if q.ByVector() {
		return len(q.QueryVectors)
	}
	return len(q.QueryPointIDs)
}

// Validate checks the mutually exclusive selection, defaults Using and
// resolves the effective k. Vector queries require top_k within [1, maxTopK];
// point-id queries use top_k when it is in range and defaultPointTopK otherwise.
func (q *QueryRequest) Validate(maxTopK, defaultPointTopK int) (int, error) {
	hasVectors := len(q.QueryVectors) > 0
	hasIDs := len(q.QueryPointIDs) > 0
	if hasVectors == hasIDs {
		return 0, Validationf("invalid_query", "exactly one of query_vectors or query_pointids must be provided")
	}
	if q.Using == "" {
		q.Using = DefaultVectorField
	}

	if hasVectors {
		if q.TopK == nil {
			return 0, Validationf("invalid_top_k", "top_k is required for vector queries")
		}
		if *q.TopK < 1 || *q.TopK > maxTopK {
			return 0, InvalidTopK(*q.TopK, maxTopK)
		}
		for i, v := range q.QueryVectors {
			if len(v) == 0 {
				return 0, Validationf("invalid_vector", "query_vectors[%d] is empty", i)
			}
		}
		return *q.TopK, nil
	}

	for i, id := range q.QueryPointIDs {
		if id == "" {
			return 0, Validationf("invalid_id", "query_pointids[%d] is empty", i)
		}
	}
	if q.TopK != nil && *q.TopK >= 1 && *q.TopK <= maxTopK {
		return *q.TopK, nil
	}
	return defaultPointTopK, nil
}

// ScoredPoint is one ranked hit. Score semantics follow the field metric.
type ScoredPoint struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// QueryResult is either a single flat ranking or an ordered batch of
// rankings, one per query.
type QueryResult struct {
	Batch   bool
	Results [][]ScoredPoint
}

// Single returns the flat ranking of a non-batch result.
func (r QueryResult) Single() []ScoredPoint {
	if len(r.Results) == 0 {
		return []ScoredPoint{}
	}
	return r.Results[0]
}

func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.Batch {
		out := make([][]ScoredPoint, len(r.Results))
		for i, res := range r.Results {
			if res == nil {
				res = []ScoredPoint{}
			}
			out[i] = res
		}
		return json.Marshal(out)
	}
	return json.Marshal(r.Single())
}

// UnmarshalJSON detects the flat vs batch shape from the first element.
func (r *QueryResult) UnmarshalJSON(data []byte) error {
	var batch [][]ScoredPoint
	if err := json.Unmarshal(data, &batch); err == nil {
		r.Batch = true
		r.Results = batch
		return nil
	}
	var flat []ScoredPoint
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("query result must be a list or a list of lists: %w", err)
	}
	r.Batch = false
	r.Results = [][]ScoredPoint{flat}
	return nil
}

// QueryResponse wraps a query result with status and elapsed seconds.
type QueryResponse struct {
	Status string      `json:"status"`
	Time   float64     `json:"time"`
	Result QueryResult `json:"result"`
}

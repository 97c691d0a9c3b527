package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   QueryRequest
		wantK   int
		wantErr bool
	}{
		{"vector query", QueryRequest{QueryVectors: [][]float32{{1}}, TopK: intPtr(5)}, 5, false},
		{"vector query missing top_k", QueryRequest{QueryVectors: [][]float32{{1}}}, 0, true},
		{"vector query top_k zero", QueryRequest{QueryVectors: [][]float32{{1}}, TopK: intPtr(0)}, 0, true},
		{"vector query top_k too large", QueryRequest{QueryVectors: [][]float32{{1}}, TopK: intPtr(101)}, 0, true},
		{"both selections", QueryRequest{QueryVectors: [][]float32{{1}}, QueryPointIDs: []string{"a"}, TopK: intPtr(1)}, 0, true},
		{"neither selection", QueryRequest{TopK: intPtr(1)}, 0, true},
		{"id query default k", QueryRequest{QueryPointIDs: []string{"a"}}, 10, false},
		{"id query explicit k", QueryRequest{QueryPointIDs: []string{"a"}, TopK: intPtr(3)}, 3, false},
		{"id query out of range k ignored", QueryRequest{QueryPointIDs: []string{"a"}, TopK: intPtr(500)}, 10, false},
		{"id query empty id", QueryRequest{QueryPointIDs: []string{""}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			k, err := q.Validate(100, 10)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantK, k)
			assert.Equal(t, DefaultVectorField, q.Using)
		})
	}
}

func TestQueryResult_JSONShape(t *testing.T) {
	single := QueryResult{Results: [][]ScoredPoint{{{ID: "a", Score: 0}}}}
	b, err := json.Marshal(single)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","score":0}]`, string(b))

	batch := QueryResult{Batch: true, Results: [][]ScoredPoint{{{ID: "a", Score: 1}}, nil}}
	b, err = json.Marshal(batch)
	require.NoError(t, err)
	assert.JSONEq(t, `[[{"id":"a","score":1}],[]]`, string(b))

	var decoded QueryResult
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"b","score":2}]`), &decoded))
	assert.False(t, decoded.Batch)
	assert.Equal(t, "b", decoded.Single()[0].ID)
}

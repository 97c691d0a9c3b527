package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/collection"
	"github.com/hyperjump/vectorgraph/internal/config"
	"github.com/hyperjump/vectorgraph/internal/models"
	"github.com/hyperjump/vectorgraph/internal/search"
	"github.com/hyperjump/vectorgraph/internal/storage"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	registry := collection.NewRegistry(collection.Options{
		MaxVectorFields: cfg.Limits.MaxVectorFields,
		MaxBatchPoints:  cfg.Limits.MaxBatchPoints,
	})
	engine := search.NewEngine(registry, &cfg.Search, zap.NewNop())
	srv := NewServer(registry, engine, nil, cfg, zap.NewNop())
	return &testServer{t: t, handler: srv.Router()}
}

func (ts *testServer) do(method, path string, body interface{}) (int, map[string]interface{}) {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(ts.t, json.NewDecoder(w.Body).Decode(&out), "decode %s %s", method, path)
	return w.Code, out
}

func (ts *testServer) mustCreate(name string, vectors interface{}) {
	ts.t.Helper()
	code, body := ts.do(http.MethodPut, "/collections/"+name, map[string]interface{}{"vectors": vectors})
	require.Equal(ts.t, http.StatusCreated, code, "create %s: %v", name, body)
}

func ids(t *testing.T, v interface{}) []string {
	t.Helper()
	list, ok := v.([]interface{})
	require.True(t, ok, "expected list, got %T", v)
	out := make([]string, len(list))
	for i, item := range list {
		switch x := item.(type) {
		case string:
			out[i] = x
		case map[string]interface{}:
			out[i] = x["id"].(string)
		}
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCollectionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("docs", map[string]interface{}{"size": 4, "distance": "L2"})

	code, body := ts.do(http.MethodPut, "/collections/docs", map[string]interface{}{
		"vectors": map[string]interface{}{"size": 4, "distance": "L2"},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "already_exists", body["kind"])

	code, body = ts.do(http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusOK, code)
	cols := body["collections"].(map[string]interface{})
	require.Contains(t, cols, "docs")
	docs := cols["docs"].(map[string]interface{})
	assert.Equal(t, false, docs["on_disk"])
	assert.EqualValues(t, 0, docs["points_count"])

	code, body = ts.do(http.MethodGet, "/collections/docs", nil)
	require.Equal(t, http.StatusOK, code)
	info := body["collection"].(map[string]interface{})
	vectors := info["vectors"].(map[string]interface{})
	assert.Contains(t, vectors, models.DefaultVectorField)

	code, _ = ts.do(http.MethodDelete, "/collections/docs", nil)
	assert.Equal(t, http.StatusOK, code)
	code, body = ts.do(http.MethodGet, "/collections/docs", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["kind"])
	code, _ = ts.do(http.MethodDelete, "/collections/docs", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateCollection_Validation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown distance", map[string]interface{}{"vectors": map[string]interface{}{"size": 4, "distance": "Manhattan"}}},
		{"zero size", map[string]interface{}{"vectors": map[string]interface{}{"size": 0, "distance": "Dot"}}},
		{"missing vectors", map[string]interface{}{}},
		{"bad on_disk", map[string]interface{}{"vectors": map[string]interface{}{"size": 2, "distance": "Dot"}, "on_disk": "maybe"}},
		{"malformed json", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(http.MethodPut, "/collections/bad", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "validation", body["kind"])
		})
	}
}

func TestCreateCollection_NamedVectorsAndOnDiskString(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodPut, "/collections/multi", map[string]interface{}{
		"vectors": map[string]interface{}{
			"text":  map[string]interface{}{"size": 2, "distance": "Cosine"},
			"image": map[string]interface{}{"size": 3, "distance": "Dot"},
		},
		"on_disk": "false",
	})
	require.Equal(t, http.StatusCreated, code, "%v", body)

	_, body = ts.do(http.MethodGet, "/collections/multi", nil)
	vectors := body["collection"].(map[string]interface{})["vectors"].(map[string]interface{})
	assert.Len(t, vectors, 2)
	assert.Contains(t, vectors, "text")
}

func TestUpsertAndQuery_L2Scenario(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("c", map[string]interface{}{"size": 4, "distance": "L2"})

	code, body := ts.do(http.MethodPost, "/upsert", map[string]interface{}{
		"collection_name": "c",
		"points": []interface{}{
			map[string]interface{}{"id": "a", "vector": []float32{0, 0, 0, 0}},
			map[string]interface{}{"id": "b", "vector": []float32{1, 0, 0, 0}, "payload": map[string]interface{}{"k": "v"}},
		},
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "ok", body["status"])
	result := body["result"].(map[string]interface{})
	assert.EqualValues(t, 2, result["inserted"])
	assert.EqualValues(t, 0, result["updated"])
	assert.Contains(t, body, "time")

	code, body = ts.do(http.MethodPost, "/collections/c/query", map[string]interface{}{
		"query_vectors": [][]float32{{0, 0, 0, 0}},
		"top_k":         2,
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
	hits := body["result"].([]interface{})
	require.Len(t, hits, 2)
	first := hits[0].(map[string]interface{})
	second := hits[1].(map[string]interface{})
	assert.Equal(t, "a", first["id"])
	assert.EqualValues(t, 0, first["score"])
	assert.Equal(t, "b", second["id"])
	assert.EqualValues(t, 1, second["score"])
}

func TestUpsert_BatchObjectAndBatchQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("c", map[string]interface{}{"size": 2, "distance": "Dot"})

	code, body := ts.do(http.MethodPost, "/upsert", map[string]interface{}{
		"collection_name": "c",
		"points": map[string]interface{}{
			"ids":      []string{"x", "y"},
			"vectors":  [][]float32{{1, 0}, {0, 1}},
			"payloads": []interface{}{map[string]interface{}{"n": 1}, nil},
		},
	})
	require.Equal(t, http.StatusOK, code, "%v", body)

	code, body = ts.do(http.MethodPost, "/collections/c/query", map[string]interface{}{
		"collection_name": "c",
		"query_vectors":   [][]float32{{0, 1}, {1, 0}},
		"top_k":           1,
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
	batch := body["result"].([]interface{})
	require.Len(t, batch, 2)
	assert.Equal(t, []string{"y"}, ids(t, batch[0]))
	assert.Equal(t, []string{"x"}, ids(t, batch[1]))

	code, body = ts.do(http.MethodGet, "/collections/c/points/x", nil)
	require.Equal(t, http.StatusOK, code)
	point := body["point"].(map[string]interface{})
	assert.Equal(t, "x", point["id"])
	assert.EqualValues(t, 1, point["payload"].(map[string]interface{})["n"])

	code, _ = ts.do(http.MethodGet, "/collections/c/points/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpsert_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("c", map[string]interface{}{"size": 2, "distance": "L2"})

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"missing collection", map[string]interface{}{"collection_name": "ghost", "points": []interface{}{
			map[string]interface{}{"id": "a", "vector": []float32{1, 2}},
		}}, http.StatusNotFound},
		{"dimension mismatch", map[string]interface{}{"collection_name": "c", "points": []interface{}{
			map[string]interface{}{"id": "a", "vector": []float32{1, 2}},
			map[string]interface{}{"id": "b", "vector": []float32{1, 2, 3}},
		}}, http.StatusBadRequest},
		{"unknown field", map[string]interface{}{"collection_name": "c", "points": []interface{}{
			map[string]interface{}{"id": "a", "vector": map[string]interface{}{"other": []float32{1, 2}}},
		}}, http.StatusBadRequest},
		{"numeric id", map[string]interface{}{"collection_name": "c", "points": []interface{}{
			map[string]interface{}{"id": 7, "vector": []float32{1, 2}},
		}}, http.StatusBadRequest},
		{"no collection name", map[string]interface{}{"points": []interface{}{}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(http.MethodPost, "/upsert", tt.body)
			assert.Equal(t, tt.code, code, "%v", body)
			assert.Equal(t, "error", body["status"])
		})
	}

	_, body := ts.do(http.MethodGet, "/collections/c", nil)
	assert.EqualValues(t, 0, body["collection"].(map[string]interface{})["points_count"])
}

func TestQuery_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("c", map[string]interface{}{"size": 2, "distance": "L2"})

	tests := []struct {
		name string
		path string
		body interface{}
		code int
	}{
		{"top_k zero", "/collections/c/query", map[string]interface{}{"query_vectors": [][]float32{{1, 1}}, "top_k": 0}, http.StatusBadRequest},
		{"top_k too large", "/collections/c/query", map[string]interface{}{"query_vectors": [][]float32{{1, 1}}, "top_k": 101}, http.StatusBadRequest},
		{"name mismatch", "/collections/c/query", map[string]interface{}{"collection_name": "d", "query_vectors": [][]float32{{1, 1}}, "top_k": 1}, http.StatusBadRequest},
		{"missing collection", "/collections/ghost/query", map[string]interface{}{"query_vectors": [][]float32{{1, 1}}, "top_k": 1}, http.StatusNotFound},
		{"unknown point", "/collections/c/query", map[string]interface{}{"query_pointids": []string{"nope"}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, code, "%v", body)
		})
	}
}

func addEdge(t *testing.T, ts *testServer, from, to string, weight float64) {
	t.Helper()
	code, body := ts.do(http.MethodPost, "/collections/g/graph/relationships", map[string]interface{}{
		"from_id": from, "to_id": to, "relationship": "related", "weight": weight,
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
}

func TestGraphEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("g", map[string]interface{}{"size": 2, "distance": "Cosine"})
	addEdge(t, ts, "A", "B", 0.9)
	addEdge(t, ts, "B", "D", 0.6)
	addEdge(t, ts, "A", "C", 0.2)

	code, body := ts.do(http.MethodPost, "/collections/g/graph/traverse", map[string]interface{}{
		"start_id": "A", "direction": "outwards", "max_hops": 2, "min_weight": 0.5,
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, []string{"A", "B", "D"}, ids(t, body["nodes"]))
	assert.Equal(t, false, body["truncated"])
	assert.Equal(t, "outwards", body["direction"])
	assert.EqualValues(t, 2, body["max_hops"])
	assert.EqualValues(t, 0.5, body["min_weight"])

	_, body = ts.do(http.MethodPost, "/collections/g/graph/traverse", map[string]interface{}{
		"start_id": "A", "relationship_filter": "other",
	})
	assert.Equal(t, []string{"A"}, ids(t, body["nodes"]))

	_, body = ts.do(http.MethodPost, "/collections/g/graph/traverse", map[string]interface{}{"start_id": "A", "max_hops": 0})
	assert.Equal(t, []string{"A"}, ids(t, body["nodes"]))

	code, body = ts.do(http.MethodPost, "/collections/g/graph/shortest-path", map[string]interface{}{"start_id": "A", "end_id": "D"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, []string{"A", "B", "D"}, ids(t, body["path"]))
	assert.EqualValues(t, 2, body["path_length"])

	_, body = ts.do(http.MethodPost, "/collections/g/graph/shortest-path", map[string]interface{}{"start_id": "D", "end_id": "A"})
	assert.Equal(t, false, body["found"])
	assert.NotContains(t, body, "path_length")

	_, body = ts.do(http.MethodGet, "/collections/g/graph/nodes/A/related?min_weight=0.5", nil)
	assert.Equal(t, []string{"B"}, ids(t, body["related_nodes"]))
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "A", body["point_id"])
	assert.EqualValues(t, 0.5, body["min_weight"])

	_, body = ts.do(http.MethodGet, "/collections/g/graph/nodes/A/related?min_weight=0.95", nil)
	assert.Empty(t, ids(t, body["related_nodes"]))
	assert.EqualValues(t, 0, body["count"])

	_, body = ts.do(http.MethodGet, "/collections/g/graph/nodes/B/connected", nil)
	assert.Equal(t, []string{"A"}, ids(t, body["connected_nodes"]))

	_, body = ts.do(http.MethodGet, "/collections/g/graph/nodes/B/neighbors?relationship=related&direction=both", nil)
	assert.Equal(t, []string{"D", "A"}, ids(t, body["neighbors"]))

	_, body = ts.do(http.MethodGet, "/collections/g/graph/nodes/B/relationships", nil)
	assert.EqualValues(t, 2, body["count"])

	_, body = ts.do(http.MethodGet, "/collections/g/graph", nil)
	assert.Len(t, body["edges"], 3)
	assert.Equal(t, []string{"A", "B", "D", "C"}, ids(t, body["nodes"]))
}

func TestGraphEndpoints_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("g", map[string]interface{}{"size": 2, "distance": "Cosine"})

	code, body := ts.do(http.MethodPost, "/collections/g/graph/relationships", map[string]interface{}{
		"from_id": "A", "to_id": "B", "relationship": "r", "weight": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_weight", body["code"])

	code, _ = ts.do(http.MethodPost, "/collections/g/graph/traverse", map[string]interface{}{"start_id": "A", "max_hops": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPost, "/collections/g/graph/traverse", map[string]interface{}{"start_id": "A", "direction": "up"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodGet, "/collections/g/graph/nodes/A/related?min_weight=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodGet, "/collections/missing/graph", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRelationship_DefaultWeight(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("g", map[string]interface{}{"size": 2, "distance": "Cosine"})
	code, body := ts.do(http.MethodPost, "/collections/g/graph/relationships", map[string]interface{}{
		"from_id": "A", "to_id": "B", "relationship": "r",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["created"])
	assert.EqualValues(t, 1, body["relationship"].(map[string]interface{})["weight"])
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.mustCreate("a", map[string]interface{}{"size": 2, "distance": "L2"})
	code, body := ts.do(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["collections"])
	assert.NotContains(t, body, "disk_usage_bytes")
}

func TestHandleStatus_WithStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "vg.db")
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	defer store.Close()

	registry := collection.NewRegistry(collection.Options{Storage: store})
	_, err = registry.Create(context.Background(), "durable", models.Schema{
		models.DefaultVectorField: {Size: 2, Distance: models.DistanceL2},
	}, true)
	require.NoError(t, err)

	srv := NewServer(registry, search.NewEngine(registry, &cfg.Search, nil), store, cfg, nil)
	ts := &testServer{t: t, handler: srv.Router()}
	_, body := ts.do(http.MethodGet, "/status", nil)
	assert.Contains(t, body, "disk_usage_bytes")
	assert.Equal(t, true, body["config"].(map[string]interface{})["durable_storage"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.Validationf("x", "bad"), http.StatusBadRequest},
		{models.CollectionNotFound("c"), http.StatusNotFound},
		{models.CollectionExists("c"), http.StatusConflict},
		{models.CollectionDeleted("c"), http.StatusConflict},
		{models.Internal("boom", errors.New("disk")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", body["status"])
}

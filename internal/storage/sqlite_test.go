package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/vectorgraph/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(name string) *CollectionRecord {
	return &CollectionRecord{
		Name:       name,
		InstanceID: "instance-" + name,
		Schema: models.Schema{
			"image": {Size: 3, Distance: models.DistanceCosine},
			"text":  {Size: 2, Distance: models.DistanceL2},
		},
		OnDisk:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStorage_Collections(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.CreateCollection(ctx, testRecord("docs")); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateCollection(ctx, testRecord("docs")); err == nil {
		t.Error("expected error on duplicate collection")
	}

	recs, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(recs))
	}
	got := recs[0]
	if got.Name != "docs" || got.InstanceID != "instance-docs" || !got.OnDisk {
		t.Errorf("got %+v", got)
	}
	if got.Schema["image"].Distance != models.DistanceCosine || got.Schema["text"].Size != 2 {
		t.Errorf("schema not round-tripped: %+v", got.Schema)
	}
}

func TestSQLiteStorage_PointsKeepInsertionOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.CreateCollection(ctx, testRecord("docs")); err != nil {
		t.Fatal(err)
	}

	title := models.Map(map[string]models.Value{"title": models.String("first")})
	batch := []*models.Point{
		{ID: "p1", Vectors: map[string][]float32{"text": {1, 2}}, Payload: &title},
		{ID: "p2", Vectors: map[string][]float32{"text": {3, 4}}},
	}
	if err := store.UpsertPoints(ctx, "docs", batch); err != nil {
		t.Fatal(err)
	}

	// Updating p1 must not move it behind p2.
	updated := []*models.Point{
		{ID: "p1", Vectors: map[string][]float32{"text": {9, 9}, "image": {1, 0, 0}}, Payload: &title},
	}
	if err := store.UpsertPoints(ctx, "docs", updated); err != nil {
		t.Fatal(err)
	}

	points, err := store.LoadPoints(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].ID != "p1" || points[1].ID != "p2" {
		t.Errorf("order = %s, %s; want p1, p2", points[0].ID, points[1].ID)
	}
	if v := points[0].Vectors["text"]; len(v) != 2 || v[0] != 9 {
		t.Errorf("p1 text vector = %v", v)
	}
	if points[0].Payload == nil || !points[0].Payload.Equal(title) {
		t.Errorf("p1 payload = %+v", points[0].Payload)
	}
	if points[1].Payload != nil {
		t.Errorf("p2 payload should be nil, got %+v", points[1].Payload)
	}

	n, err := store.CountPoints(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountPoints = %d, want 2", n)
	}
}

func TestSQLiteStorage_Edges(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	edges := []models.Edge{
		{FromID: "A", ToID: "B", Relationship: "cites", Weight: 0.5},
		{FromID: "B", ToID: "C", Relationship: "cites", Weight: 0.6},
		{FromID: "A", ToID: "B", Relationship: "cites", Weight: 0.9},
	}
	for _, e := range edges {
		if err := store.UpsertEdge(ctx, "docs", e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.LoadEdges(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(got))
	}
	if got[0].ToID != "B" || got[0].Weight != 0.9 {
		t.Errorf("first edge = %+v, want A->B weight 0.9", got[0])
	}
	n, _ := store.CountEdges(ctx, "docs")
	if n != 2 {
		t.Errorf("CountEdges = %d, want 2", n)
	}
}

func TestSQLiteStorage_DeleteCollectionCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.CreateCollection(ctx, testRecord("docs")); err != nil {
		t.Fatal(err)
	}
	_ = store.UpsertPoints(ctx, "docs", []*models.Point{{ID: "p1", Vectors: map[string][]float32{"text": {1, 1}}}})
	_ = store.UpsertEdge(ctx, "docs", models.Edge{FromID: "p1", ToID: "p2", Relationship: "r", Weight: 1})

	if err := store.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	recs, _ := store.ListCollections(ctx)
	if len(recs) != 0 {
		t.Errorf("expected no collections, got %d", len(recs))
	}
	if n, _ := store.CountPoints(ctx, "docs"); n != 0 {
		t.Errorf("points left after delete: %d", n)
	}
	if n, _ := store.CountEdges(ctx, "docs"); n != 0 {
		t.Errorf("edges left after delete: %d", n)
	}
}

func TestSQLiteStorage_PayloadKeepsLargeIntegers(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.CreateCollection(ctx, testRecord("docs")); err != nil {
		t.Fatal(err)
	}

	var payload models.Value
	if err := json.Unmarshal([]byte(`{"id":9007199254740993}`), &payload); err != nil {
		t.Fatal(err)
	}
	points := []*models.Point{{ID: "p1", Vectors: map[string][]float32{"text": {1, 2}}, Payload: &payload}}
	if err := store.UpsertPoints(ctx, "docs", points); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadPoints(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Payload == nil {
		t.Fatalf("loaded = %+v", loaded)
	}
	out, err := json.Marshal(loaded[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"id":9007199254740993}` {
		t.Errorf("payload after reload = %s", out)
	}
}

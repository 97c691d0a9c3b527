package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		schema TEXT NOT NULL,
		on_disk INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS points (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		vectors TEXT NOT NULL,
		payload TEXT,
		PRIMARY KEY (collection, id)
	);

	CREATE TABLE IF NOT EXISTS edges (
		collection TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		relationship TEXT NOT NULL,
		weight REAL NOT NULL,
		PRIMARY KEY (collection, from_id, to_id, relationship)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(collection, from_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateCollection inserts a collection record.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, rec *CollectionRecord) error {
	schemaJSON, err := json.Marshal(rec.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (name, instance_id, schema, on_disk, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Name, rec.InstanceID, string(schemaJSON), rec.OnDisk, rec.CreatedAt,
	)
	return err
}

// DeleteCollection removes a collection with its points and edges.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM points WHERE collection = ?`,
		`DELETE FROM edges WHERE collection = ?`,
		`DELETE FROM collections WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListCollections returns all collection records ordered by creation time.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*CollectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, instance_id, schema, on_disk, created_at
		 FROM collections ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*CollectionRecord
	for rows.Next() {
		var rec CollectionRecord
		var schemaJSON string
		if err := rows.Scan(&rec.Name, &rec.InstanceID, &schemaJSON, &rec.OnDisk, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(schemaJSON), &rec.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema of %q: %w", rec.Name, err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// UpsertPoints writes points in a transaction. Existing rows keep their rowid
// so load order matches first-insertion order.
func (s *SQLiteStorage) UpsertPoints(ctx context.Context, collection string, points []*models.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (collection, id, vectors, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET vectors = excluded.vectors, payload = excluded.payload`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		vectorsJSON, err := json.Marshal(p.Vectors)
		if err != nil {
			return fmt.Errorf("failed to marshal vectors of %q: %w", p.ID, err)
		}
		var payload sql.NullString
		if p.Payload != nil {
			raw, err := json.Marshal(p.Payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload of %q: %w", p.ID, err)
			}
			payload = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, string(vectorsJSON), payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadPoints returns the points of a collection in first-insertion order.
func (s *SQLiteStorage) LoadPoints(ctx context.Context, collection string) ([]*models.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vectors, payload FROM points WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*models.Point
	for rows.Next() {
		var p models.Point
		var vectorsJSON string
		var payload sql.NullString
		if err := rows.Scan(&p.ID, &vectorsJSON, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vectorsJSON), &p.Vectors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vectors of %q: %w", p.ID, err)
		}
		if payload.Valid {
			var v models.Value
			if err := json.Unmarshal([]byte(payload.String), &v); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload of %q: %w", p.ID, err)
			}
			p.Payload = &v
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}

// UpsertEdge inserts an edge or overwrites its weight.
func (s *SQLiteStorage) UpsertEdge(ctx context.Context, collection string, edge models.Edge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO edges (collection, from_id, to_id, relationship, weight) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, from_id, to_id, relationship) DO UPDATE SET weight = excluded.weight`,
		collection, edge.FromID, edge.ToID, edge.Relationship, edge.Weight,
	)
	return err
}

// LoadEdges returns the edges of a collection in first-insertion order.
func (s *SQLiteStorage) LoadEdges(ctx context.Context, collection string) ([]models.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, relationship, weight FROM edges WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Relationship, &e.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CountPoints returns the number of stored points of a collection.
func (s *SQLiteStorage) CountPoints(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// CountEdges returns the number of stored edges of a collection.
func (s *SQLiteStorage) CountEdges(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

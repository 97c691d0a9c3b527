// Package search answers similarity queries against collections, singly or
// in batches, by raw vector or by the stored vector of a point.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/vectorgraph/internal/collection"
	"github.com/hyperjump/vectorgraph/internal/config"
	"github.com/hyperjump/vectorgraph/internal/models"
	"github.com/hyperjump/vectorgraph/internal/vector"
)

// Engine runs similarity queries resolved through a collection registry.
type Engine struct {
	registry *collection.Registry
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a query engine. A nil cfg uses the defaults.
func NewEngine(registry *collection.Registry, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = &config.Default().Search
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, config: cfg, logger: logger}
}

// Query validates req and ranks every query in it against collection name.
// All queries of one request observe the same collection state. A single
// query yields a flat result, several yield one ranking per query in input
// order.
func (e *Engine) Query(ctx context.Context, name string, req *models.QueryRequest) (*models.QueryResponse, error) {
	startTime := time.Now()
	k, err := req.Validate(e.config.MaxTopK, e.config.DefaultPointTopK)
	if err != nil {
		return nil, err
	}
	c, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	results := make([][]models.ScoredPoint, req.Len())
	err = c.View(func(snap collection.Snapshot) error {
		params, ok := snap.Params(req.Using)
		if !ok {
			return models.UnknownVectorField(req.Using)
		}
		idx, err := snap.Index(req.Using)
		if err != nil {
			return err
		}
		if req.ByVector() {
			for i, q := range req.QueryVectors {
				if len(q) != params.Size {
					return fmt.Errorf("query_vectors[%d]: %w", i, models.DimensionMismatch(req.Using, params.Size, len(q)))
				}
			}
		} else {
			for _, id := range req.QueryPointIDs {
				if _, ok := idx.Get(id); !ok {
					if snap.HasPoint(id) {
						return models.PointNotFound(id, req.Using)
					}
					return models.PointNotFound(id, "")
				}
			}
		}
		return e.run(ctx, idx, req, k, results)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query executed",
		zap.String("collection", name),
		zap.String("using", req.Using),
		zap.Int("queries", len(results)),
		zap.Int("top_k", k),
		zap.Duration("took", time.Since(startTime)),
	)
	return &models.QueryResponse{
		Status: "ok",
		Time:   time.Since(startTime).Seconds(),
		Result: models.QueryResult{Batch: len(results) > 1, Results: results},
	}, nil
}

// run fans the queries out over a bounded errgroup. Each goroutine writes
// only its own slot of results.
func (e *Engine) run(ctx context.Context, idx vector.VectorIndex, req *models.QueryRequest, k int, results [][]models.ScoredPoint) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit := e.config.BatchConcurrency; limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < req.Len(); i++ {
		i := i
		g.Go(func() error {
			var (
				hits []*vector.VectorResult
				err  error
			)
			if req.ByVector() {
				hits, err = idx.Search(gctx, req.QueryVectors[i], k)
			} else {
				hits, err = idx.SearchByID(gctx, req.QueryPointIDs[i], k)
			}
			if err != nil {
				return err
			}
			results[i] = toScored(hits)
			return nil
		})
	}
	return g.Wait()
}

func toScored(hits []*vector.VectorResult) []models.ScoredPoint {
	out := make([]models.ScoredPoint, len(hits))
	for i, h := range hits {
		out[i] = models.ScoredPoint{ID: h.ID, Score: h.Score}
	}
	return out
}

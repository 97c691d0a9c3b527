package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/models"
	"github.com/hyperjump/vectorgraph/internal/storage"
)

const maxBodyBytes = 64 << 20

// decodeBody decodes the JSON request body into v. It reports false after
// writing a 400 response.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var me *models.Error
		switch {
		case errors.As(err, &me):
			s.respondError(w, r, me)
		case errors.Is(err, io.EOF):
			s.respondBadRequest(w, "request body is required")
		default:
			s.respondBadRequest(w, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	var points, edges int
	for _, info := range infos {
		points += info.PointsCount
		edges += info.EdgesCount
	}
	resp := map[string]interface{}{
		"status":         "ok",
		"collections":    len(infos),
		"points":         points,
		"edges":          edges,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	}
	configInfo := map[string]interface{}{
		"max_top_k":         s.config.Search.MaxTopK,
		"max_vector_fields": s.registry.MaxVectorFields(),
		"max_visited_nodes": s.config.Graph.MaxVisitedNodes,
		"durable_storage":   s.storage != nil,
	}
	if s.storage != nil {
		configInfo["database_path"] = s.config.Storage.DatabasePath
		if n, err := storage.DatabaseUsageBytes(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = n
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req models.CreateCollectionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	schema, err := req.Schema(s.registry.MaxVectorFields())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	onDisk := bool(req.OnDisk)
	if onDisk && s.storage == nil {
		s.logger.Warn("on_disk requested without durable storage; collection kept in memory",
			zap.String("collection", name))
	}
	s.logger.Debug("create collection request",
		zap.String("collection", name),
		zap.Strings("fields", schema.Fields()),
		zap.Bool("on_disk", onDisk),
	)
	if _, err := s.registry.Create(r.Context(), name, schema, onDisk); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.Describe(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "collection": info})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	collections := make(map[string]models.CollectionInfo, len(infos))
	for _, info := range infos {
		collections[info.Name] = info
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "collections": collections})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete collection request", zap.String("collection", name))
	if err := s.registry.Delete(r.Context(), name); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type upsertResponse struct {
	Status string              `json:"status"`
	Time   float64             `json:"time"`
	Result models.UpsertResult `json:"result"`
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.UpsertRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.CollectionName == "" {
		s.respondBadRequest(w, "collection_name is required")
		return
	}
	writes, err := req.Writes()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.registry.Get(req.CollectionName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("upsert request", zap.String("collection", req.CollectionName), zap.Int("points", len(writes)))
	res, err := c.Upsert(r.Context(), writes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, upsertResponse{
		Status: "ok",
		Time:   time.Since(start).Seconds(),
		Result: *res,
	})
}

func (s *Server) handleGetPoint(w http.ResponseWriter, r *http.Request) {
	c, err := s.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	p, err := c.GetPoint(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "point": p})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req models.QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.CollectionName != "" && req.CollectionName != name {
		s.respondBadRequest(w, "collection_name "+req.CollectionName+" does not match path collection "+name)
		return
	}
	s.logger.Debug("query request",
		zap.String("collection", name),
		zap.Int("vectors", len(req.QueryVectors)),
		zap.Int("point_ids", len(req.QueryPointIDs)),
	)
	resp, err := s.engine.Query(r.Context(), name, &req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/models"
)

type errorBody struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists), errors.Is(err, models.ErrState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError translates an engine error into its HTTP status and body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Status: "error", Kind: string(models.KindOf(err)), Message: err.Error()}
	var me *models.Error
	if errors.As(err, &me) {
		body.Code = me.Code
	}
	if status == http.StatusGatewayTimeout {
		body.Kind = "timeout"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	s.respondJSON(w, status, body)
}

// respondBadRequest reports a malformed request that never reached the engine.
func (s *Server) respondBadRequest(w http.ResponseWriter, message string) {
	s.respondJSON(w, http.StatusBadRequest, errorBody{
		Status:  "error",
		Kind:    string(models.KindValidation),
		Code:    "invalid_request",
		Message: message,
	})
}

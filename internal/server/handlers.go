// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cclsrec/internal/metrics"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/history"
	"github.com/tomtom215/cclsrec/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// requestTimeout bounds a single recommendation.
const requestTimeout = 10 * time.Second

// RecommendRequest is the body of POST /api/v1/recommendations.
type RecommendRequest struct {
	UserID         string   `json:"user_id" validate:"required_without=Items,max=256"`
	Items          []string `json:"items" validate:"required_without=UserID,max=10000,dive,required"`
	K              int      `json:"k" validate:"min=0"`
	Exclude        []string `json:"exclude" validate:"max=10000"`
	IncludeHistory bool     `json:"include_history"`
}

// HistoryRequest is the body of the history write endpoints.
type HistoryRequest struct {
	Items []string `json:"items" validate:"required,min=1,max=10000,dive,required"`
}

// HistoryResponse is returned by the history endpoints.
type HistoryResponse struct {
	UserID string   `json:"user_id"`
	Items  []string `json:"items"`
}

// HealthResponse is returned by /healthz and /readyz.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelReady   bool   `json:"model_ready"`
	ModelVersion int    `json:"model_version"`
}

// decodeJSON reads a size-limited body and validates it. The returned string
// is a client-facing message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (string, any) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return "request body is empty", nil
		}
		return fmt.Sprintf("invalid JSON body: %v", err), nil
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return "request validation failed", verr.Details()
	}
	return "", nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var body RecommendRequest
	if msg, details := decodeJSON(w, r, &body); msg != "" {
		if details != nil {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, msg, details)
			return
		}
		rw.BadRequest(msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:         body.UserID,
		Items:          body.Items,
		K:              body.K,
		Exclude:        body.Exclude,
		IncludeHistory: body.IncludeHistory,
	})
	if err != nil {
		metrics.RecordRecommendation(false, 0, err)
		switch {
		case errors.Is(err, recommend.ErrModelNotReady):
			rw.ServiceUnavailable("no model loaded yet")
		case errors.Is(err, history.ErrUserNotFound):
			rw.NotFound(fmt.Sprintf("no history stored for user %q", body.UserID))
		case errors.Is(err, recommend.ErrEmptyHistory):
			rw.Error(http.StatusUnprocessableEntity, ErrCodeUnprocessable, err.Error())
		default:
			rw.InternalError(err)
		}
		return
	}
	metrics.RecordRecommendation(resp.Metadata.CacheHit, resp.Metadata.PredictionTime, nil)
	rw.Success(resp)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(s.engine.Stats())
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	items, err := s.history.Get(r.Context(), userID)
	if errors.Is(err, history.ErrUserNotFound) {
		rw.NotFound(fmt.Sprintf("no history stored for user %q", userID))
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(HistoryResponse{UserID: userID, Items: items})
}

// handleWriteHistory replaces (PUT) or extends (POST) a user's history.
func (s *Server) handleWriteHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	var body HistoryRequest
	if msg, details := decodeJSON(w, r, &body); msg != "" {
		if details != nil {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, msg, details)
			return
		}
		rw.BadRequest(msg)
		return
	}

	var err error
	if r.Method == http.MethodPut {
		err = s.history.Put(r.Context(), userID, body.Items)
	} else {
		err = s.history.Append(r.Context(), userID, body.Items...)
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	items, err := s.history.Get(r.Context(), userID)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(HistoryResponse{UserID: userID, Items: items})
}

func (s *Server) health() HealthResponse {
	return HealthResponse{Status: "ok", ModelReady: s.engine.Ready(), ModelVersion: s.engine.Version()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(s.health())
}

// handleReady returns 503 until a model has been loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	h := s.health()
	rw := NewResponseWriter(w, r)
	if !h.ModelReady {
		rw.ServiceUnavailable("no model loaded yet")
		return
	}
	rw.Success(h)
}

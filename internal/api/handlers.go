// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/feed"
)

// FeedService builds ranked feed pages. Implemented by feed.Engine.
type FeedService interface {
	BuildFeed(ctx context.Context, req feed.Request) (*feed.Response, error)
}

// ConfigAdmin manages versioned ranking configs. Implemented by
// feed.ConfigStore.
type ConfigAdmin interface {
	Insert(ctx context.Context, sc *feed.StoredConfig) error
	Activate(ctx context.Context, env string, version int) error
	List(ctx context.Context, env string) ([]feed.StoredConfig, error)
}

// Pinger reports storage liveness for the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	feeds   FeedService
	configs ConfigAdmin
	db      Pinger
	logger  zerolog.Logger
}

// NewHandler creates the API handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(feeds FeedService, configs ConfigAdmin, db Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		feeds:   feeds,
		configs: configs,
		db:      db,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// GetFeed serves GET /api/v1/feed/{viewerID}.
//
// Query parameters: limit (optional item count), cursor (opaque pagination
// token from a previous page), page_id (optional impression partition key).
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	req := feed.Request{
		ViewerID: chi.URLParam(r, "viewerID"),
		Cursor:   r.URL.Query().Get("cursor"),
		PageID:   r.URL.Query().Get("page_id"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}

	resp, err := h.feeds.BuildFeed(r.Context(), req)
	switch {
	case errors.Is(err, feed.ErrViewerRequired):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "viewer id is required")
		return
	case errors.Is(err, feed.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid pagination cursor")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("viewer_id", req.ViewerID).Msg("feed build failed")
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "feed temporarily unavailable")
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

// createConfigRequest is the body for POST /api/v1/admin/configs/{env}.
type createConfigRequest struct {
	Version int          `json:"version"`
	Config  *feed.Config `json:"config"`
}

// CreateConfig serves POST /api/v1/admin/configs/{env}. The new version is
// stored inactive; a separate activation call makes it live.
func (h *Handler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "env")

	var body createConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.Version <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidationFailed, "version must be positive")
		return
	}

	sc := &feed.StoredConfig{Env: env, Version: body.Version, Config: body.Config}
	if err := h.configs.Insert(r.Context(), sc); err != nil {
		h.logger.Warn().Err(err).Str("env", env).Int("version", body.Version).Msg("config insert rejected")
		writeError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	writeSuccess(w, http.StatusCreated, sc)
}

// ActivateConfig serves POST /api/v1/admin/configs/{env}/{version}/activate.
func (h *Handler) ActivateConfig(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "env")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "version must be a positive integer")
		return
	}

	if err := h.configs.Activate(r.Context(), env, version); err != nil {
		h.logger.Warn().Err(err).Str("env", env).Int("version", version).Msg("config activation failed")
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "config version not found")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"env":     env,
		"version": version,
		"active":  true,
	})
}

// ListConfigs serves GET /api/v1/admin/configs/{env}, newest first.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	env := chi.URLParam(r, "env")

	list, err := h.configs.List(r.Context(), env)
	if err != nil {
		h.logger.Error().Err(err).Str("env", env).Msg("config list failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "listing configs failed")
		return
	}

	writeSuccess(w, http.StatusOK, list)
}

// Health serves GET /healthz. Liveness only; no dependencies checked.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready serves GET /readyz, checking storage reachability.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "storage unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

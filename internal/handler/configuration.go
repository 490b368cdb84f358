package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apiwatch/apiwatch/internal/middleware"
	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/pkg/apperrors"
	"github.com/apiwatch/apiwatch/internal/repository"
	"github.com/apiwatch/apiwatch/internal/service"
	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	tracker *service.Tracker
}

func NewConfigHandler(tracker *service.Tracker) *ConfigHandler {
	return &ConfigHandler{tracker: tracker}
}

// GetOrCreate resolves the config for (apiKey, path), creating it with
// defaults on first sight. This is the upsert read the reporting SDK polls.
func (h *ConfigHandler) GetOrCreate(c *gin.Context) {
	apiKey := middleware.APIKey(c)
	path := c.Query("path")

	if apiKey == "" || path == "" {
		c.Error(apperrors.NewInvalidRequest("apiKey and path required"))
		return
	}

	cfg, err := h.tracker.GetConfig(c.Request.Context(), apiKey, path)
	if err != nil {
		c.Error(apperrors.NewStorage(err.Error(), err))
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// configUpdateRequest enumerates every updatable field explicitly. Unknown
// fields are a client error, not a silent assignment.
type configUpdateRequest struct {
	APIKey string `json:"apiKey"`
	Path   string `json:"path"`
	model.ConfigUpdate
}

// Update applies an operator-driven partial policy change.
func (h *ConfigHandler) Update(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	var req configUpdateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	if req.APIKey == "" || req.Path == "" {
		c.Error(apperrors.NewInvalidRequest("apiKey and path required"))
		return
	}

	cfg, err := h.tracker.UpdateConfig(c.Request.Context(), req.APIKey, req.Path, req.ConfigUpdate)
	switch {
	case errors.Is(err, repository.ErrConfigNotFound):
		c.Error(apperrors.NewNotFound("Config not found"))
	case errors.Is(err, service.ErrInvalidRate):
		c.Error(apperrors.NewInvalidRequest(err.Error()))
	case err != nil:
		c.Error(apperrors.NewStorage(err.Error(), err))
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})
	}
}

// Fetch is the read-only lookup used by the dashboard's configuration page.
// The apiKey arrives as a path parameter here, not a header.
func (h *ConfigHandler) Fetch(c *gin.Context) {
	apiKey := c.Param("apiKey")
	path := c.Query("path")

	if apiKey == "" || path == "" {
		c.Error(apperrors.NewInvalidRequest("apiKey and path are required"))
		return
	}

	cfg, err := h.tracker.FetchConfig(c.Request.Context(), apiKey, path)
	switch {
	case errors.Is(err, repository.ErrConfigNotFound):
		c.Error(apperrors.NewNotFound("Config not found"))
	case err != nil:
		c.Error(apperrors.NewStorage(err.Error(), err))
	default:
		c.JSON(http.StatusOK, cfg)
	}
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/apiwatch/apiwatch/internal/middleware"
	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/service"
	"github.com/gin-gonic/gin"
)

type TrackHandler struct {
	tracker   *service.Tracker
	analytics *service.Analytics
}

func NewTrackHandler(tracker *service.Tracker, analytics *service.Analytics) *TrackHandler {
	return &TrackHandler{tracker: tracker, analytics: analytics}
}

// Track ingests one reported batch. The response count echoes the batch
// size; rejected and skipped events still count.
func (h *TrackHandler) Track(c *gin.Context) {
	apiKey := middleware.APIKey(c)

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := decodeBatch(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(events) == 0 {
		c.JSON(http.StatusOK, model.TrackResponse{Success: true, Count: 0, Note: "No events to track"})
		return
	}

	count, err := h.tracker.Track(c.Request.Context(), apiKey, events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.TrackResponse{Success: true, Count: count})
}

// decodeBatch accepts the three shapes reporters send: a {"events": [...]}
// wrapper, a bare array, or a single event object. An empty or {} body is an
// empty batch.
func decodeBatch(body []byte) ([]model.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var events []model.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, err
	}
	if len(probe) == 0 {
		return nil, nil
	}

	// The events key only unwraps when it actually holds an array. A
	// non-array value means the body is a single event that happens to
	// carry an "events" field.
	if raw, ok := probe["events"]; ok && len(raw) > 0 && raw[0] == '[' {
		var events []model.Event
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var single model.Event
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []model.Event{single}, nil
}

// RequestCount answers whether the route is currently over its limit.
// Missing config or a disabled limiter is not-blocked, never an error.
func (h *TrackHandler) RequestCount(c *gin.Context) {
	apiKey := middleware.APIKey(c)
	path := c.Query("path")

	if apiKey == "" || path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "apiKey and path required"})
		return
	}

	resp, err := h.analytics.RequestCount(c.Request.Context(), apiKey, path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.RequestCountResponse{Blocked: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/apiwatch/apiwatch/internal/live"
	"github.com/gin-gonic/gin"
)

// LiveHandler exposes the dashboard's live tail: a websocket stream of
// events as they are persisted, plus a recent-events backfill.
type LiveHandler struct {
	hub *live.Hub
}

func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{hub: hub}
}

func (h *LiveHandler) Stream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}

func (h *LiveHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.hub.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/apiwatch/apiwatch/internal/pkg/apperrors"
	"github.com/apiwatch/apiwatch/internal/service"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the dashboard's read endpoints. Pure aggregation
// over the event log; no policy decisions happen here.
type AnalyticsHandler struct {
	analytics *service.Analytics
}

func NewAnalyticsHandler(analytics *service.Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) UniqueRoutes(c *gin.Context) {
	routes, err := h.analytics.UniqueRoutes(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewStorage(err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *AnalyticsHandler) MonthlyEvents(c *gin.Context) {
	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		c.Error(apperrors.NewInvalidRequest("year and month are required"))
		return
	}

	events, err := h.analytics.MonthlyEvents(c.Request.Context(), year, month)
	if err != nil {
		c.Error(apperrors.NewStorage(err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *AnalyticsHandler) AllEvents(c *gin.Context) {
	events, err := h.analytics.AllEvents(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewStorage(err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *AnalyticsHandler) Metrics(c *gin.Context) {
	summary, err := h.analytics.Metrics(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewStorage("Failed to fetch metrics", err))
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandler) Graph(c *gin.Context) {
	graph, err := h.analytics.Graph(c.Request.Context())
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "Server error", err))
		return
	}
	c.JSON(http.StatusOK, graph)
}

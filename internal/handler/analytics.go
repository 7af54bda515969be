package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AnalyticsService interface {
	GetSummary(ctx context.Context, from, to time.Time) (*service.SecuritySummary, error)
	GetEvents(ctx context.Context, from, to time.Time, eventType string, limit, offset int) ([]models.SecurityEvent, error)
	CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error)
}

type AnalyticsHandler struct {
	service AnalyticsService
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewAnalyticsHandler(service AnalyticsService, log logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, log: log, now: time.Now}
}

// Handles GET /admin/events/summary
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c, h.now())
	if err != nil {
		badRequest(c, "Invalid time range")
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles GET /admin/events
func (h *AnalyticsHandler) GetEvents(c *gin.Context) {
	from, to, err := parseTimeRange(c, h.now())
	if err != nil {
		badRequest(c, "Invalid time range")
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	events, err := h.service.GetEvents(c.Request.Context(), from, to, c.Query("type"), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// Handles DELETE /admin/events?retention_days=N
func (h *AnalyticsHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("retention_days", "30"))
	if err != nil || days <= 0 {
		badRequest(c, "retention_days must be a positive integer")
		return
	}

	deleted, err := h.service.CleanupOldEvents(c.Request.Context(), days)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "retention_days": days})
}

// Parses 'from' and 'to' query parameters, RFC3339 or unix seconds.
// Default: the 24 hours before now.
func parseTimeRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	to := now
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTime(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTime(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	if timestamp, perr := strconv.ParseInt(s, 10, 64); perr == nil {
		return time.Unix(timestamp, 0), nil
	}
	return time.Time{}, err
}

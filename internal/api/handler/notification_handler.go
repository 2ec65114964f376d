package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/dto"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/api/service"
	"github.com/genjishimada/dispatch-core/internal/metrics"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

const (
	defaultTrayLimit = 25
	maxTrayLimit     = 100
)

// NotificationHandler serves event ingestion, the tray endpoints and the
// delivery ledger.
type NotificationHandler struct {
	logger     *slog.Logger
	events     EventStore
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger:     deps.Logger,
		events:     deps.Events,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// CreateEvent handles POST /api/v1/notifications/events
// Ingests one notification and fans out delivery. A replayed idempotency key
// returns 200 with duplicate=true and nothing else.
func (h *NotificationHandler) CreateEvent(c *gin.Context) {
	var req dto.NotificationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	eventType := notifications.EventType(req.EventType)
	if !eventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid event_type",
		})
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), service.DispatchRequest{
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		UserID:         req.UserID,
		EventType:      eventType,
		Title:          req.Title,
		Body:           req.Body,
		DiscordMessage: req.DiscordMessage,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.logger.Error("Failed to dispatch notification", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dispatch notification",
		})
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, dto.NotificationEventResponse{Duplicate: true})
		return
	}

	resp := eventResponse(result.Event)
	if result.JobID != "" {
		resp.JobID = &result.JobID
	}

	c.JSON(http.StatusCreated, resp)
}

// ListEvents handles GET /api/v1/notifications/users/:user_id/events
func (h *NotificationHandler) ListEvents(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread_only") == "true"

	limit := queryInt(c, "limit", defaultTrayLimit)
	if limit <= 0 {
		limit = defaultTrayLimit
	}
	if limit > maxTrayLimit {
		limit = maxTrayLimit
	}

	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	events, err := h.events.ListUserEvents(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list notifications", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list notifications",
		})
		return
	}

	resp := make([]dto.NotificationEventResponse, len(events))
	for i := range events {
		resp[i] = eventResponse(&events[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"events": resp,
	})
}

// UnreadCount handles GET /api/v1/notifications/users/:user_id/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	count, err := h.events.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count unread notifications",
		})
		return
	}

	c.JSON(http.StatusOK, dto.UnreadCountResponse{Count: count})
}

// MarkRead handles PATCH /api/v1/notifications/events/:event_id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	if err := h.events.MarkEventRead(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "notification event not found",
			})
			return
		}
		h.logger.Error("Failed to mark notification read", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark notification read",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// Dismiss handles PATCH /api/v1/notifications/events/:event_id/dismiss
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	if err := h.events.DismissEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "notification event not found",
			})
			return
		}
		h.logger.Error("Failed to dismiss notification", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dismiss notification",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllRead handles PATCH /api/v1/notifications/users/:user_id/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	marked, err := h.events.MarkAllEventsRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to mark all notifications read", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark all notifications read",
		})
		return
	}

	c.JSON(http.StatusOK, dto.MarkAllReadResponse{MarkedRead: marked})
}

// RecordDeliveryResult handles POST /api/v1/notifications/events/:event_id/delivery-result
// A re-reported (event, channel) pair overwrites the previous outcome.
func (h *NotificationHandler) RecordDeliveryResult(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	var req dto.DeliveryResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	channel := notifications.Channel(req.Channel)
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrInvalidChannel.Error(),
		})
		return
	}

	status := notifications.DeliveryStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrInvalidDeliveryStatus.Error(),
		})
		return
	}

	if _, err := h.events.GetEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "notification event not found",
			})
			return
		}
		h.logger.Error("Failed to load notification event", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record delivery result",
		})
		return
	}

	if err := h.events.RecordDeliveryResult(c.Request.Context(), eventID, channel, status, req.ErrorMessage); err != nil {
		h.logger.Error("Failed to record delivery result", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record delivery result",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.DeliveryResultTotal.WithLabelValues(string(channel), string(status)).Inc()
	}

	h.logger.Info("Delivery result recorded",
		slog.Int64("event_id", eventID),
		slog.String("channel", string(channel)),
		slog.String("status", string(status)),
	)

	c.Status(http.StatusNoContent)
}

// ListDeliveryResults handles GET /api/v1/notifications/events/:event_id/delivery-results
func (h *NotificationHandler) ListDeliveryResults(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	attempts, err := h.events.FetchDeliveryResults(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("Failed to fetch delivery results", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch delivery results",
		})
		return
	}

	resp := make([]dto.DeliveryAttemptResponse, len(attempts))
	for i, attempt := range attempts {
		resp[i] = dto.DeliveryAttemptResponse{
			Channel:      attempt.Channel,
			Status:       attempt.Status,
			AttemptedAt:  formatTime(attempt.AttemptedAt),
			DeliveredAt:  formatTimePtr(attempt.DeliveredAt),
			ErrorMessage: attempt.ErrorMessage,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": resp,
	})
}

func eventResponse(event *model.NotificationEvent) dto.NotificationEventResponse {
	return dto.NotificationEventResponse{
		ID:          event.ID,
		UserID:      event.UserID,
		EventType:   event.EventType,
		Title:       event.Title,
		Body:        event.Body,
		Metadata:    event.Metadata,
		CreatedAt:   formatTime(event.CreatedAt),
		ReadAt:      formatTimePtr(event.ReadAt),
		DismissedAt: formatTimePtr(event.DismissedAt),
	}
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id must be a positive integer",
		})
		return 0, false
	}
	return userID, true
}

func parseEventID(c *gin.Context) (int64, bool) {
	eventID, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "event_id must be a positive integer",
		})
		return 0, false
	}
	return eventID, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

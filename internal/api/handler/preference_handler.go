package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/dto"
	"github.com/genjishimada/dispatch-core/internal/api/service"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// PreferenceHandler serves the resolved preference views and writes.
type PreferenceHandler struct {
	logger   *slog.Logger
	resolver PreferenceResolver
}

func NewPreferenceHandler(deps *Dependencies) *PreferenceHandler {
	return &PreferenceHandler{
		logger:   deps.Logger,
		resolver: deps.Resolver,
	}
}

// GetPreferences handles GET /api/v1/notifications/users/:user_id/preferences
// Every event type appears with every channel resolved, defaults filled in.
func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	resolved, err := h.resolver.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve preferences", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to resolve preferences",
		})
		return
	}

	resp := make([]dto.PreferencesResponse, len(resolved))
	for i, entry := range resolved {
		channels := make(map[string]bool, len(entry.Channels))
		for channel, enabled := range entry.Channels {
			channels[string(channel)] = enabled
		}
		resp[i] = dto.PreferencesResponse{
			EventType: string(entry.EventType),
			Channels:  channels,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"preferences": resp,
	})
}

// UpdatePreference handles PUT /api/v1/notifications/users/:user_id/preferences/:event_type/:channel
func (h *PreferenceHandler) UpdatePreference(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "enabled must be true or false",
		})
		return
	}

	eventType := notifications.EventType(c.Param("event_type"))
	channel := notifications.Channel(c.Param("channel"))

	if err := h.resolver.UpdatePreference(c.Request.Context(), userID, eventType, channel, enabled); err != nil {
		if errors.Is(err, domain.ErrInvalidEventType) || errors.Is(err, domain.ErrInvalidChannel) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to update preference", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update preference",
		})
		return
	}

	h.logger.Info("Preference updated",
		slog.Int64("user_id", userID),
		slog.String("event_type", string(eventType)),
		slog.String("channel", string(channel)),
		slog.Bool("enabled", enabled),
	)

	c.Status(http.StatusNoContent)
}

// BulkUpdatePreferences handles PUT /api/v1/notifications/users/:user_id/preferences/bulk
// Entries apply in order; the first failure aborts the remainder and the
// error names the failing entry. Applied entries stay applied.
func (h *PreferenceHandler) BulkUpdatePreferences(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var entries []dto.PreferenceEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	updates := make([]service.PreferenceUpdate, len(entries))
	for i, entry := range entries {
		updates[i] = service.PreferenceUpdate{
			EventType: notifications.EventType(entry.EventType),
			Channel:   notifications.Channel(entry.Channel),
			Enabled:   entry.Enabled,
		}
	}

	if err := h.resolver.BulkUpdate(c.Request.Context(), userID, updates); err != nil {
		if errors.Is(err, domain.ErrInvalidEventType) || errors.Is(err, domain.ErrInvalidChannel) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to bulk update preferences", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	h.logger.Info("Preferences bulk updated",
		slog.Int64("user_id", userID),
		slog.Int("entries", len(entries)),
	)

	c.Status(http.StatusNoContent)
}

// ShouldDeliver handles GET /api/v1/notifications/users/:user_id/should-deliver
func (h *PreferenceHandler) ShouldDeliver(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	eventType := notifications.EventType(c.Query("event_type"))
	channel := notifications.Channel(c.Query("channel"))

	should, err := h.resolver.ShouldDeliver(c.Request.Context(), userID, eventType, channel)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEventType) || errors.Is(err, domain.ErrInvalidChannel) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to resolve delivery decision", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to resolve delivery decision",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ShouldDeliverResponse{ShouldDeliver: should})
}

// LegacyBitmask handles GET /api/v1/notifications/users/:user_id/legacy-bitmask
func (h *PreferenceHandler) LegacyBitmask(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	bitmask, err := h.resolver.LegacyBitmask(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to compute legacy bitmask", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute legacy bitmask",
		})
		return
	}

	c.JSON(http.StatusOK, dto.LegacyBitmaskResponse{Bitmask: bitmask})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genjishimada/dispatch-core/internal/api/dto"
)

// IdempotencyHandler exposes the claim gate to trusted internal callers.
type IdempotencyHandler struct {
	logger *slog.Logger
	store  IdempotencyStore
}

func NewIdempotencyHandler(deps *Dependencies) *IdempotencyHandler {
	return &IdempotencyHandler{
		logger: deps.Logger,
		store:  deps.Idempotency,
	}
}

// Claim handles POST /api/v1/internal/idempotency/claim
// Returns claimed=true only for the first caller of a key.
func (h *IdempotencyHandler) Claim(c *gin.Context) {
	var req dto.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "key is required",
		})
		return
	}

	claimed, err := h.store.ClaimIdempotencyKey(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("Failed to claim idempotency key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to claim idempotency key",
		})
		return
	}

	h.logger.Info("Idempotency claim",
		slog.String("key", req.Key),
		slog.Bool("claimed", claimed),
	)

	c.JSON(http.StatusCreated, dto.ClaimResponse{Claimed: claimed})
}

// Release handles DELETE /api/v1/internal/idempotency/claim
// Releasing an unclaimed key succeeds; the operation is idempotent.
func (h *IdempotencyHandler) Release(c *gin.Context) {
	var req dto.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "key is required",
		})
		return
	}

	if err := h.store.ReleaseIdempotencyKey(c.Request.Context(), req.Key); err != nil {
		h.logger.Error("Failed to release idempotency key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to release idempotency key",
		})
		return
	}

	h.logger.Info("Idempotency claim released", slog.String("key", req.Key))

	c.Status(http.StatusNoContent)
}

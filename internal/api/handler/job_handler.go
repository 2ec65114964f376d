package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/dto"
	"github.com/genjishimada/dispatch-core/internal/metrics"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// JobHandler serves job status reads and consumer-reported transitions.
type JobHandler struct {
	logger  *slog.Logger
	jobs    JobStore
	metrics *metrics.Metrics
}

func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		jobs:    deps.Jobs,
		metrics: deps.Metrics,
	}
}

// GetJob handles GET /api/v1/internal/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		ID:        job.ID,
		Status:    job.Status,
		ErrorCode: job.ErrorCode,
		ErrorMsg:  job.ErrorMsg,
		Attempts:  job.Attempts,
	})
}

// UpdateJob handles PATCH /api/v1/internal/jobs/:job_id
// Transitions reported against terminal jobs return 200 without mutating.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	var req dto.JobUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	status := notifications.JobStatus(req.Status)

	err := h.jobs.UpdateJob(c.Request.Context(), jobID, status, req.Result, req.ErrorCode, req.ErrorMsg)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidJobStatus), errors.Is(err, domain.ErrMissingErrorDetails):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
		default:
			h.logger.Error("Failed to update job", slog.String("job_id", jobID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update job",
			})
		}
		return
	}

	if h.metrics != nil {
		h.metrics.JobTransitionTotal.WithLabelValues(string(status)).Inc()
	}

	h.logger.Info("Job transition recorded",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	c.JSON(http.StatusOK, gin.H{
		"id":     jobID,
		"status": string(status),
	})
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/genjishimada/dispatch-core/internal/notifications"
	"github.com/genjishimada/dispatch-core/internal/worker/domain"
)

// deliveryOutcome is the per-channel summary written into the job result.
type deliveryOutcome struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// processTask runs one delivery message end to end: dedup the redelivery,
// move the job to processing, send on each channel, record the ledger rows
// and finish the job.
//
// The consumed marker is claimed before any side effect and released again
// on failure, so a requeued redelivery gets a clean retry. A redelivery that
// finds the marker already claimed is acked without sending anything twice.
//
// The release and the terminal job write always run on the parent context:
// on a timeout the task context is already past its deadline, and a release
// that fails there would leak the marker and wedge the job in processing.
func (w *Worker) processTask(ctx context.Context, task *domain.DeliveryTask) error {
	msg := task.Message

	w.logger.Info("Processing delivery",
		slog.String("job_id", msg.JobID),
		slog.Int64("event_id", msg.EventID),
		slog.String("event_type", string(msg.EventType)),
		slog.Int("channels", len(msg.Channels)),
	)

	taskCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	claimed, err := w.storage.ClaimConsumed(taskCtx, task.MessageID)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to claim consumed marker: %w", err))
	}
	if !claimed {
		w.logger.Warn("Duplicate delivery skipped - message already consumed",
			slog.String("job_id", msg.JobID),
			slog.String("message_id", task.MessageID),
		)
		return nil
	}

	if err := w.storage.MarkJobProcessing(taskCtx, msg.JobID); err != nil {
		w.releaseConsumed(ctx, task.MessageID, msg.JobID)
		return domain.NewRetryableError(fmt.Errorf("failed to mark job processing: %w", err))
	}

	outcomes := make([]deliveryOutcome, 0, len(msg.Channels))
	failures := 0

	for _, channel := range msg.Channels {
		sendErr := w.sender.Deliver(taskCtx, channel, msg)

		status := notifications.DeliveryDelivered
		var errMsg *string
		if sendErr != nil {
			status = notifications.DeliveryFailed
			s := sendErr.Error()
			errMsg = &s
			failures++
		}

		if recErr := w.storage.RecordDeliveryResult(taskCtx, msg.EventID, channel, status, errMsg); recErr != nil {
			w.logger.Error("Failed to record delivery result",
				slog.String("job_id", msg.JobID),
				slog.String("channel", string(channel)),
				slog.String("error", recErr.Error()),
			)
			w.releaseConsumed(ctx, task.MessageID, msg.JobID)
			return domain.NewRetryableError(fmt.Errorf("failed to record delivery result: %w", recErr))
		}

		outcome := deliveryOutcome{Channel: string(channel), Status: string(status)}
		if errMsg != nil {
			outcome.Error = *errMsg
		}
		outcomes = append(outcomes, outcome)
	}

	if failures > 0 {
		errMsg := fmt.Sprintf("%d of %d channel deliveries failed", failures, len(msg.Channels))
		status := notifications.JobFailed
		if taskCtx.Err() == context.DeadlineExceeded {
			status = notifications.JobTimeout
		}

		// terminal state is recorded against the parent context: the task
		// context may already be past its deadline
		if updErr := w.storage.MarkJobFailed(ctx, msg.JobID, status, "delivery_error", errMsg); updErr != nil {
			w.logger.Error("Failed to mark job failed",
				slog.String("job_id", msg.JobID),
				slog.String("error", updErr.Error()),
			)
		}

		w.releaseConsumed(ctx, task.MessageID, msg.JobID)
		return domain.NewRetryableError(fmt.Errorf("delivery failed: %s", errMsg))
	}

	result, err := json.Marshal(map[string]interface{}{
		"deliveries": outcomes,
	})
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}

	if err := w.storage.MarkJobSucceeded(taskCtx, msg.JobID, result); err != nil {
		// Deliveries already ran; requeueing would double-send, so log and ack
		w.logger.Error("Failed to mark job succeeded",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Delivery completed",
		slog.String("job_id", msg.JobID),
		slog.Int64("event_id", msg.EventID),
		slog.Int("channels", len(msg.Channels)),
	)

	return nil
}

func (w *Worker) releaseConsumed(ctx context.Context, messageID, jobID string) {
	if err := w.storage.ReleaseConsumed(ctx, messageID); err != nil {
		w.logger.Error("Failed to release consumed marker",
			slog.String("job_id", jobID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
	}
}

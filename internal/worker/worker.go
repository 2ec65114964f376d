package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genjishimada/dispatch-core/internal/notifications"
	"github.com/genjishimada/dispatch-core/internal/worker/domain"
	"github.com/genjishimada/dispatch-core/shared/rabbitmq"
)

// JobStore is the job bookkeeping surface the worker writes through.
type JobStore interface {
	ClaimConsumed(ctx context.Context, messageID string) (bool, error)
	ReleaseConsumed(ctx context.Context, messageID string) error
	MarkJobProcessing(ctx context.Context, jobID string) error
	MarkJobSucceeded(ctx context.Context, jobID string, result json.RawMessage) error
	MarkJobFailed(ctx context.Context, jobID string, status notifications.JobStatus, errorCode, errorMsg string) error
	RecordDeliveryResult(ctx context.Context, eventID int64, channel notifications.Channel, status notifications.DeliveryStatus, errorMessage *string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Storage       JobStore
	RabbitClient  *rabbitmq.Client
	Sender        Sender
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	QueueName     string
}

// Worker consumes delivery messages and runs the per-channel sends.
type Worker struct {
	logger        *slog.Logger
	storage       JobStore
	rabbitClient  *rabbitmq.Client
	sender        Sender
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	queueName     string
	workerID      string
	tasksChan     chan *domain.DeliveryTask
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		storage:       cfg.Storage,
		rabbitClient:  cfg.RabbitClient,
		sender:        cfg.Sender,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		queueName:     cfg.QueueName,
		workerID:      uuid.New().String(),
		tasksChan:     make(chan *domain.DeliveryTask),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes deliveries until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

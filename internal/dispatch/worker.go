// Package dispatch consumes uploaded job ids from the intake queue and
// feeds them to the offer coordinator through a worker pool.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/spoolr-in/spoolr/internal/dispatch/coordinator"
	"github.com/spoolr-in/spoolr/shared/rabbitmq"
)

// Config holds dispatch worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Coordinator   *coordinator.Coordinator
	Concurrency   int
	PrefetchCount int
	QueueName     string
}

// jobMessage is one intake delivery: the job id plus the AMQP delivery tag
// needed to ACK or NACK it.
type jobMessage struct {
	JobID       string
	DeliveryTag uint64
}

// Worker pulls job ids off the intake queue and dispatches them
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	coord         *coordinator.Coordinator
	concurrency   int
	prefetchCount int
	queueName     string
	workerID      string
	jobsChan      chan *jobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new dispatch worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		coord:         cfg.Coordinator,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		queueName:     cfg.QueueName,
		workerID:      fmt.Sprintf("dispatch-%s", uuid.New().String()[:8]),
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and dispatching jobs; blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting dispatch worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker pool
func (w *Worker) Stop() {
	w.logger.Info("Stopping dispatch worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Dispatch worker stopped")
}

package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/metrics"
	"github.com/lattiq/courier/internal/store"
)

// Worker drains the outbox: a poller claims due pending messages and hands
// them to a pool of delivery workers. Messages that fail with a retryable
// error are rescheduled with exponential backoff; permanent failures and
// messages out of attempts are marked failed.
type Worker struct {
	store      store.OutboxStore
	sender     Sender
	config     Config
	logger     *slog.Logger
	msgChan    chan *store.OutboxMessage
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWorker creates a new Worker.
func NewWorker(s store.OutboxStore, sender Sender, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}
	if config.StuckCheckInterval == 0 {
		config.StuckCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		store:      s,
		sender:     sender,
		config:     config,
		logger:     logger,
		msgChan:    make(chan *store.OutboxMessage, config.BatchSize),
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Start recovers interrupted work and begins processing. It returns once
// the poller, delivery workers, and stuck-message monitor are running.
func (w *Worker) Start() error {
	// Messages left in processing by a previous crash go back to pending.
	requeued, err := w.store.RequeueProcessing(w.ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted messages: %w", err)
	}
	if requeued > 0 {
		w.logger.Info("recovered interrupted outbox messages", "count", requeued)
	}

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.deliveryWorker(i)
	}

	w.wg.Add(1)
	go w.poll()

	w.wg.Add(1)
	go w.stuckMessageMonitor()

	return nil
}

// Stop gracefully shuts down the worker pool. In-flight deliveries finish;
// claimed but undelivered messages are recovered by the next start or the
// stuck-message monitor.
func (w *Worker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
}

// poll periodically claims due messages and hands them to the workers.
func (w *Worker) poll() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			messages, err := w.store.ClaimDue(w.ctx, time.Now().UTC(), w.config.BatchSize)
			if err != nil {
				if w.ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to claim due outbox messages", "error", err)
				continue
			}

			for _, msg := range messages {
				select {
				case w.msgChan <- msg:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}

// deliveryWorker processes messages from the queue.
func (w *Worker) deliveryWorker(id int) {
	defer w.wg.Done()

	w.logger.Debug("starting outbox worker", "worker_id", id)

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("stopping outbox worker", "worker_id", id)
			return
		case msg := <-w.msgChan:
			w.deliver(msg, id)
		}
	}
}

// deliver attempts delivery of a single message and records the outcome.
func (w *Worker) deliver(msg *store.OutboxMessage, workerID int) {
	ctx := context.Background()
	log := w.logger.With(
		"message_id", msg.ID,
		"worker_id", workerID,
		"attempt", msg.Attempts+1,
	)

	err := w.sender.Send(ctx, msg.Email)
	if err == nil {
		log.Info("outbox message delivered")
		metrics.OutboxProcessed.WithLabelValues("sent").Inc()
		if updateErr := w.store.MarkSent(ctx, msg.ID); updateErr != nil {
			log.Error("failed to mark message sent", "error", updateErr)
		}
		return
	}

	attempts := msg.Attempts + 1

	if !core.IsRetryable(err) || attempts >= msg.MaxAttempts {
		log.Error("outbox message failed permanently",
			"error", err,
			"attempts", attempts)
		metrics.OutboxProcessed.WithLabelValues("failed").Inc()
		if updateErr := w.store.MarkFailed(ctx, msg.ID, err.Error()); updateErr != nil {
			log.Error("failed to mark message failed", "error", updateErr)
		}
		return
	}

	delay := w.config.backoffDelay(attempts)
	log.Warn("outbox delivery failed, rescheduling",
		"error", err,
		"retry_in", delay)
	metrics.OutboxProcessed.WithLabelValues("retried").Inc()
	if updateErr := w.store.Reschedule(ctx, msg.ID, attempts, time.Now().UTC().Add(delay), err.Error()); updateErr != nil {
		log.Error("failed to reschedule message", "error", updateErr)
	}
}

// stuckMessageMonitor periodically resets messages that have been in
// processing state for too long.
func (w *Worker) stuckMessageMonitor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			requeued, err := w.store.RequeueProcessing(w.ctx, w.config.StuckAge)
			if err != nil {
				if w.ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to check for stuck messages", "error", err)
				continue
			}
			if requeued > 0 {
				w.logger.Info("reset stuck outbox messages", "count", requeued)
			}
		}
	}
}

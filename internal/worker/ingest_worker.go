package worker

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/internal/repository"
	"github.com/RubachokBoss/peer-review/review-service/internal/worker/queue"
)

// IngestWorker drains the durable submission subscription and writes
// each delivered-submission fact into the event store. Processing is
// idempotent: redelivered or reordered events for the same
// (assignmentId, studentId) key collapse into one record.
type IngestWorker interface {
	Start(ctx context.Context) error
	Stop() error
	IsReady() bool
	GetStats() IngestStats
}

type IngestStats struct {
	Processed  int `json:"processed"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Discarded  int `json:"discarded"`
	FailedJobs int `json:"failed_jobs"`
}

type ingestWorker struct {
	consumer       queue.SubmissionConsumer
	workerPool     *WorkerPool
	eventRepo      repository.SubmissionEventRepository
	requeueOnError bool
	logger         zerolog.Logger

	stats      IngestStats
	statsMutex sync.Mutex
}

func NewIngestWorker(
	consumer queue.SubmissionConsumer,
	workerPool *WorkerPool,
	eventRepo repository.SubmissionEventRepository,
	requeueOnError bool,
	logger zerolog.Logger,
) IngestWorker {
	return &ingestWorker{
		consumer:       consumer,
		workerPool:     workerPool,
		eventRepo:      eventRepo,
		requeueOnError: requeueOnError,
		logger:         logger,
	}
}

func (w *ingestWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting ingest worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return err
	}

	msgs, err := w.consumer.Start(ctx)
	if err != nil {
		return err
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Ingest worker started successfully")
	return nil
}

func (w *ingestWorker) Stop() error {
	w.logger.Info().Msg("Stopping ingest worker...")

	if err := w.consumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close submission consumer")
	}

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("processed", stats.Processed).
		Int("discarded", stats.Discarded).
		Int("failed_jobs", stats.FailedJobs).
		Msg("Ingest worker stopped")

	return nil
}

func (w *ingestWorker) IsReady() bool {
	return w.consumer.IsReady()
}

func (w *ingestWorker) GetStats() IngestStats {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()
	return w.stats
}

func (w *ingestWorker) processMessages(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			w.workerPool.Submit(func() {
				w.handleDelivery(ctx, msg)
			})
		}
	}
}

// handleDelivery decides the acknowledgement for one message:
// undecodable bodies are discarded without redelivery (poison message),
// store failures are nacked with the configured requeue flag, and
// successful writes are acked whether they created or overwrote a
// record — duplicates are expected under at-least-once delivery.
func (w *ingestWorker) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var event models.SubmissionDeliveredEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.logger.Error().Err(err).
			Str("message_id", msg.MessageId).
			Msg("Invalid message body, discarding")

		w.recordDiscarded()
		if nackErr := msg.Nack(false, false); nackErr != nil {
			w.logger.Error().Err(nackErr).Msg("Failed to nack message")
		}
		return
	}

	created, err := w.eventRepo.Save(ctx, &event, msg.Body)
	if err != nil {
		w.logger.Error().Err(err).
			Str("assignment_id", event.AssignmentID).
			Str("student_id", event.StudentID).
			Msg("Failed to store submission event")

		w.recordFailure()
		if nackErr := msg.Nack(false, w.requeueOnError); nackErr != nil {
			w.logger.Error().Err(nackErr).Msg("Failed to nack message")
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		return
	}

	w.recordSuccess(created)
	w.logger.Info().
		Str("assignment_id", event.AssignmentID).
		Str("student_id", event.StudentID).
		Str("submission_id", event.SubmissionID).
		Bool("created", created).
		Msg("Submission event stored")
}

func (w *ingestWorker) recordSuccess(created bool) {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()

	w.stats.Processed++
	if created {
		w.stats.Created++
	} else {
		w.stats.Updated++
	}
}

func (w *ingestWorker) recordDiscarded() {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()
	w.stats.Discarded++
}

func (w *ingestWorker) recordFailure() {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()
	w.stats.FailedJobs++
}

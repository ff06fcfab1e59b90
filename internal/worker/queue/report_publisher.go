package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/pkg/rabbitmq"
)

const reportEventType = "assignment.status.changed"

// ReportPublisher emits "review completed" facts to a fixed exchange.
// The connection is established lazily and re-established on demand:
// publishing after Close transparently reconnects. Loss of a report is
// non-fatal for the caller's primary operation.
type ReportPublisher interface {
	// Connect dials and declares the exchange with bounded retries and
	// a fixed delay between attempts.
	Connect(ctx context.Context) error
	// PublishReviewCompleted serializes the report and publishes it.
	// Failures are logged and returned; the caller decides whether they
	// matter.
	PublishReviewCompleted(ctx context.Context, report models.ReviewReportEvent) error
	// Close is idempotent and safe on a never-connected instance.
	Close() error
}

type PublisherConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	MaxRetries int
	RetryDelay time.Duration
}

type reportPublisher struct {
	cfg    PublisherConfig
	logger zerolog.Logger

	// mu guards the connection/channel handles so concurrent publishes
	// do not race to open duplicates.
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewReportPublisher(cfg PublisherConfig, logger zerolog.Logger) ReportPublisher {
	return &reportPublisher{
		cfg:    cfg,
		logger: logger,
	}
}

func (p *reportPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connectLocked(ctx)
}

func (p *reportPublisher) connectLocked(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		p.logger.Debug().
			Int("attempt", attempt).
			Int("max_retries", p.cfg.MaxRetries).
			Msg("Connecting publisher to RabbitMQ")

		if err := p.establishLocked(); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Msg("Publisher connection failed")

			if attempt < p.cfg.MaxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.cfg.RetryDelay):
				}
			}
			continue
		}

		p.logger.Info().
			Str("exchange", p.cfg.Exchange).
			Msg("Publisher connected to RabbitMQ")
		return nil
	}

	return fmt.Errorf("failed to connect publisher after %d attempts: %w", p.cfg.MaxRetries, lastErr)
}

func (p *reportPublisher) establishLocked() error {
	conn, err := rabbitmq.NewConnection(p.cfg.URL)
	if err != nil {
		return err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return err
	}

	err = channel.ExchangeDeclare(
		p.cfg.Exchange, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

// ensureReady re-establishes only what is absent or closed. Called
// under p.mu before every publish.
func (p *reportPublisher) ensureReady(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		p.conn = nil
		p.channel = nil
		return p.connectLocked(ctx)
	}

	if p.channel == nil || p.channel.IsClosed() {
		channel, err := rabbitmq.NewChannel(p.conn)
		if err != nil {
			return err
		}
		p.channel = channel
	}

	return nil
}

func (p *reportPublisher) PublishReviewCompleted(ctx context.Context, report models.ReviewReportEvent) error {
	body, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureReady(ctx); err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.cfg.Exchange,   // exchange
		p.cfg.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient, // losing a report is acceptable
			Timestamp:    time.Now(),
			Headers:      amqp.Table{"eventType": reportEventType},
		},
	)
	if err != nil {
		p.logger.Error().Err(err).
			Str("review_id", report.ReviewID).
			Msg("Failed to publish review report")
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Info().
		Str("review_id", report.ReviewID).
		Str("submission_id", report.SubmissionID).
		Msg("Review report published")

	return nil
}

func (p *reportPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	p.channel = nil
	p.conn = nil

	return nil
}

// encodeReport flattens the report to the wire payload contract:
// deliveredAt is RFC 3339 with offset.
func encodeReport(report models.ReviewReportEvent) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"submissionId": report.SubmissionID,
		"reviewId":     report.ReviewID,
		"punteggio":    report.Score,
		"deliveredAt":  report.DeliveredAt.Format(time.RFC3339),
	})
}

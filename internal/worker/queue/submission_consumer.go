package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/pkg/rabbitmq"
)

type ConsumerState string

const (
	StateDisconnected ConsumerState = "disconnected"
	StateConnecting   ConsumerState = "connecting"
	StateBound        ConsumerState = "bound"
	StateConsuming    ConsumerState = "consuming"
	StateStopped      ConsumerState = "stopped"
)

// SubmissionConsumer owns the durable subscription delivering
// "submission delivered" events. One logical subscription per
// deployment; the connection and channel are owned exclusively by the
// consumer.
type SubmissionConsumer interface {
	// Start connects, declares and binds the queue, then begins
	// consuming, retrying the whole sequence up to maxRetries times
	// with a fixed delay. Exhausting the retries is a fatal startup
	// error.
	Start(ctx context.Context) (<-chan amqp.Delivery, error)
	IsReady() bool
	State() ConsumerState
	// Close cancels the subscription, then closes the channel, then
	// the connection. Each step is best-effort so one failure does not
	// prevent the next.
	Close() error
}

type Config struct {
	URL         string
	Exchange    string
	RoutingKey  string
	Queue       string
	ConsumerTag string
	Prefetch    int
	MaxRetries  int
	RetryDelay  time.Duration
}

type submissionConsumer struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	state   ConsumerState
}

func NewSubmissionConsumer(cfg Config, logger zerolog.Logger) SubmissionConsumer {
	return &submissionConsumer{
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
	}
}

func (c *submissionConsumer) Start(ctx context.Context) (<-chan amqp.Delivery, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.logger.Info().
			Int("attempt", attempt).
			Int("max_retries", c.cfg.MaxRetries).
			Msg("Connecting to RabbitMQ")

		msgs, err := c.connectAndConsume(ctx)
		if err == nil {
			return msgs, nil
		}

		lastErr = err
		c.logger.Warn().Err(err).Msg("Failed to start consumer")
		c.teardown()

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}

	c.setState(StateDisconnected)
	return nil, fmt.Errorf("failed to start consumer after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *submissionConsumer) connectAndConsume(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.setState(StateConnecting)

	conn, err := rabbitmq.NewConnection(c.cfg.URL)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.Qos(
		c.cfg.Prefetch, // prefetch count
		0,              // prefetch size
		false,          // global
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.cfg.Exchange, // name
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
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		c.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		queue.Name,       // queue name
		c.cfg.RoutingKey, // routing key
		c.cfg.Exchange,   // exchange
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.state = StateBound
	c.mu.Unlock()

	msgs, err := channel.ConsumeWithContext(
		ctx,
		queue.Name,        // queue
		c.cfg.ConsumerTag, // consumer
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	c.setState(StateConsuming)
	c.logger.Info().
		Str("exchange", c.cfg.Exchange).
		Str("queue", queue.Name).
		Str("routing_key", c.cfg.RoutingKey).
		Str("consumer_tag", c.cfg.ConsumerTag).
		Msg("RabbitMQ consumer started")

	return msgs, nil
}

func (c *submissionConsumer) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == StateConsuming &&
		c.conn != nil && !c.conn.IsClosed() &&
		c.channel != nil && !c.channel.IsClosed()
}

func (c *submissionConsumer) State() ConsumerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *submissionConsumer) Close() error {
	c.mu.Lock()
	channel := c.channel
	conn := c.conn
	c.channel = nil
	c.conn = nil
	c.state = StateStopped
	c.mu.Unlock()

	if channel != nil && !channel.IsClosed() {
		if err := channel.Cancel(c.cfg.ConsumerTag, false); err != nil {
			c.logger.Error().Err(err).Msg("Failed to cancel RabbitMQ consumer")
		}
		if err := channel.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	c.logger.Info().Msg("RabbitMQ consumer closed")
	return nil
}

func (c *submissionConsumer) setState(state ConsumerState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *submissionConsumer) teardown() {
	c.mu.Lock()
	channel := c.channel
	conn := c.conn
	c.channel = nil
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

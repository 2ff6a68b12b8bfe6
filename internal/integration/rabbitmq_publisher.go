package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/config"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

const publishTimeout = 5 * time.Second

// EventPublisher отправляет события завершения проверок в RabbitMQ.
type EventPublisher interface {
	PublishSubmissionFinished(ctx context.Context, event models.SubmissionFinishedEvent) error
	Close() error
}

type rabbitMQPublisher struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
	queueName  string
	logger     zerolog.Logger

	// канал amqp091 нельзя использовать из нескольких горутин одновременно
	mu sync.Mutex
}

func NewRabbitMQPublisher(cfg config.RabbitMQConfig, logger zerolog.Logger) (EventPublisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel, cfg); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.QueueName).
		Str("routing_key", cfg.RoutingKey).
		Msg("Connected to RabbitMQ")

	return &rabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		queueName:  cfg.QueueName,
		logger:     logger,
	}, nil
}

func declareTopology(channel *amqp091.Channel, cfg config.RabbitMQConfig) error {
	if err := channel.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		cfg.QueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

func (p *rabbitMQPublisher) PublishSubmissionFinished(ctx context.Context, event models.SubmissionFinishedEvent) error {
	publishing, err := newPublishing(event)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		publishing,
	)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Info().
		Str("tracker_id", event.TrackerID).
		Str("assignment_id", event.AssignmentID).
		Str("state", event.State).
		Msg("Submission finished event published")

	return nil
}

func newPublishing(event models.SubmissionFinishedEvent) (amqp091.Publishing, error) {
	if event.Timestamp == 0 {
		event.Timestamp = event.FinishedAt.Unix()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.TrackerID,
		Type:         "submission.finished",
		Timestamp:    event.FinishedAt,
	}, nil
}

func (p *rabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends one encoded event to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *zap.Logger
}

// NewAMQP connects to the broker and declares a durable topic exchange.
func NewAMQP(ctx context.Context, opts ConnectionOptions, exchange string) (Publisher, error) {
	conn, err := DialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &amqpPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	body, err := msg.Marshal()
	if err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.OccurredAt,
		Type:         msg.Kind,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("relayed", zap.String("key", key), zap.String("exchange", p.exchange))
	return nil
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

// FallbackPublisher drops every event. It stands in when no broker is configured.
type FallbackPublisher struct {
	logger  *zap.Logger
	skipped atomic.Int64
}

// NewFallback returns a publisher that skips every event.
func NewFallback(logger *zap.Logger) *FallbackPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackPublisher{logger: logger}
}

func (p *FallbackPublisher) Publish(_ context.Context, key string, _ Envelope) error {
	p.skipped.Add(1)
	p.logger.Debug("relay disabled: skipped publish", zap.String("key", key))
	return nil
}

func (p *FallbackPublisher) Close() error { return nil }

// Skipped returns how many events were dropped.
func (p *FallbackPublisher) Skipped() int64 { return p.skipped.Load() }

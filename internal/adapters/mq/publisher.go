// Package mq publishes reservation events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/observability"
)

type Publisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishes
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	msg, err := message(v, time.Now())
	if err != nil {
		return err
	}
	start := time.Now()
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	p.mu.Unlock()

	status := 200
	if err != nil {
		status = 500
	}
	observability.ObserveExternal("rabbitmq", key, status, time.Since(start))
	return err
}

// message builds a persistent JSON publishing with a fresh message id.
func message(v any, at time.Time) (amqp.Publishing, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    at.UTC(),
		AppId:        "stayfinder",
		Body:         b,
	}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops events. It stands in when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(_ context.Context, key string, _ any) error {
	log.Debug().Str("key", key).Msg("event dropped: no broker configured")
	return nil
}

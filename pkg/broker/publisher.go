package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"event-ticket/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type connection interface {
	IsClosed() bool
	Close() error
}

// confirmChannel is the part of *amqp.Channel the publisher uses.
type confirmChannel interface {
	connection
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// Publisher sends persistent JSON messages to a durable topic exchange.
// The connection is opened lazily and reopened after the broker closes it.
// The lock covers only the publish frame; waiting for the broker's confirm
// happens outside it so publishers do not queue behind a slow confirm.
type Publisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	timeout  time.Duration
	conn     connection
	channel  confirmChannel
	log      *zap.Logger
}

func NewPublisher(config utils.BrokerConfig, log *zap.Logger) *Publisher {
	timeout := config.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		url:      config.URL,
		exchange: config.Exchange,
		timeout:  timeout,
		log:      log.With(zap.String("component", "publisher")),
	}
}

func (p *Publisher) ensureConnection() error {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareExchange(ch, p.exchange); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	p.conn = conn
	p.channel = ch
	p.log.Info("Publisher connected", zap.String("exchange", p.exchange))
	return nil
}

// Publish marshals message and waits for the broker to confirm it. It gives
// up after the configured publish timeout.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	if err := p.ensureConnection(); err != nil {
		p.mu.Unlock()
		return err
	}

	ch := p.channel
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.closeLocked()
		p.mu.Unlock()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.mu.Unlock()

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.mu.Lock()
		// another publisher may already have replaced the channel
		if p.channel == ch {
			p.closeLocked()
		}
		p.mu.Unlock()
		return fmt.Errorf("confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: %w", routingKey, errNacked)
	}

	p.log.Debug("Published message",
		zap.String("routing_key", routingKey),
		zap.Int("bytes", len(body)),
	)
	return nil
}

var errNacked = errors.New("broker rejected message")

func (p *Publisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"event-ticket/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrMalformed marks a message that can never be processed. It is rejected
// without requeue; every other handler error requeues the message.
var ErrMalformed = errors.New("malformed message")

// Handler processes one message body. A nil return acknowledges it.
type Handler func(ctx context.Context, body []byte) error

const (
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
	handlerTimeout = 30 * time.Second
)

// Consumer reads one durable queue bound to a topic exchange with a pool of
// workers, reconnecting with exponential backoff until its context ends.
type Consumer struct {
	url        string
	exchange   string
	queue      string
	routingKey string
	prefetch   int
	workers    int
	log        *zap.Logger
}

func NewConsumer(config utils.BrokerConfig, routingKey string, log *zap.Logger) *Consumer {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	prefetch := config.Prefetch
	if prefetch < workers {
		prefetch = workers
	}
	return &Consumer{
		url:        config.URL,
		exchange:   config.Exchange,
		queue:      config.Queue,
		routingKey: routingKey,
		prefetch:   prefetch,
		workers:    workers,
		log: log.With(
			zap.String("component", "consumer"),
			zap.String("queue", config.Queue),
		),
	}
}

// Run blocks until ctx is cancelled. Messages in flight when ctx ends are
// finished before Run returns; unacknowledged ones go back to the queue.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("Failed to dial broker",
				zap.Error(err),
				zap.Duration("retry_in", backoff),
			)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		err = c.consume(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.log.Info("Consumer stopped")
			return nil
		}

		c.log.Warn("Consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, minBackoff) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, handler Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, c.routingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	tag := fmt.Sprintf("event-ticket-%d", time.Now().UnixNano())
	deliveries, err := ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("Consumer started",
		zap.String("routing_key", c.routingKey),
		zap.Int("workers", c.workers),
		zap.Int("prefetch", c.prefetch),
	)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.work(ctx, workerID, deliveries, handler)
		}(i + 1)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// stop new deliveries; workers exit once the channel drains
		_ = ch.Cancel(tag, false)
		<-done
		return ctx.Err()
	case <-done:
		return errors.New("deliveries channel closed")
	}
}

func (c *Consumer) work(ctx context.Context, workerID int, deliveries <-chan amqp.Delivery, handler Handler) {
	for d := range deliveries {
		if ctx.Err() != nil {
			// shutting down: hand the message back untouched
			_ = d.Nack(false, true)
			continue
		}
		c.process(ctx, workerID, d, handler)
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handler Handler) {
	// in-flight work finishes even when shutdown starts
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
	defer cancel()

	err := handler(hctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("Failed to ack message", zap.Error(ackErr), zap.Int("worker", workerID))
		}
	case errors.Is(err, ErrMalformed):
		c.log.Warn("Rejecting malformed message",
			zap.Error(err),
			zap.Int("worker", workerID),
		)
		_ = d.Nack(false, false)
	default:
		c.log.Error("Handler failed, requeueing message",
			zap.Error(err),
			zap.Int("worker", workerID),
			zap.Bool("redelivered", d.Redelivered),
		)
		_ = d.Nack(false, true)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

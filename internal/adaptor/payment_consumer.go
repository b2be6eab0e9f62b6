package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"event-ticket/internal/dto/message"
	"event-ticket/internal/usecase"
	"event-ticket/pkg/broker"

	"go.uber.org/zap"
)

// PaymentConsumer turns payment.validated deliveries into confirmations.
type PaymentConsumer struct {
	service usecase.ConfirmationService
	log     *zap.Logger
}

func NewPaymentConsumer(service usecase.ConfirmationService, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{
		service: service,
		log:     log.With(zap.String("handler", "payment_consumer")),
	}
}

// Handle satisfies broker.Handler. Messages that can never succeed are
// reported as broker.ErrMalformed; any other error requeues the message.
func (c *PaymentConsumer) Handle(ctx context.Context, body []byte) error {
	var msg message.PaymentValidated
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Warn("Unreadable payment message", zap.Error(err), zap.ByteString("body", body))
		return fmt.Errorf("%w: %w", broker.ErrMalformed, err)
	}

	result, err := c.service.HandlePaymentValidated(ctx, &msg)
	if errors.Is(err, usecase.ErrValidation) {
		c.log.Warn("Invalid payment message",
			zap.Error(err),
			zap.String("order_id", msg.OrderID),
		)
		return fmt.Errorf("%w: %w", broker.ErrMalformed, err)
	}
	if err != nil {
		return err
	}

	c.log.Debug("Payment message processed",
		zap.String("order_id", msg.OrderID),
		zap.Int("confirmed", len(result.Confirmed)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return nil
}

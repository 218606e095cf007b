package queue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDeliveriesClosed means the broker closed the channel under the consumer.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Handler processes one message body. Every message is acknowledged after
// the handler returns; a returned error is only logged.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	ch    Channel
	queue string
	log   *zap.Logger
}

// NewConsumer declares queue and limits the channel to one unacknowledged
// message at a time.
func NewConsumer(ch Channel, queue string, log *zap.Logger) (*Consumer, error) {
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch on %s: %w", queue, err)
	}
	return &Consumer{ch: ch, queue: queue, log: log}, nil
}

// Run pulls, handles and acknowledges messages one at a time until ctx is
// cancelled or the broker closes the channel. Cancellation is observed
// between messages only; the message in hand is finished first.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("waiting for orders", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopping", zap.String("queue", c.queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			if err := handle(context.WithoutCancel(ctx), d.Body); err != nil {
				c.log.Warn("message handled with error",
					zap.Uint64("delivery_tag", d.DeliveryTag),
					zap.Bool("redelivered", d.Redelivered),
					zap.Error(err),
				)
			}
			if err := d.Ack(false); err != nil {
				c.log.Error("ack failed",
					zap.Uint64("delivery_tag", d.DeliveryTag),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

package queue

import (
	"context"
	"sync"

	"clinic-orders/internal/exceptions"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher struct {
	mu    sync.Mutex
	ch    Channel
	queue string
	log   *zap.Logger
}

// NewPublisher declares queue on ch and returns a publisher for it.
func NewPublisher(ch Channel, queue string, log *zap.Logger) (*Publisher, error) {
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue, log: log}, nil
}

// Publish enqueues msg as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, msg OrderMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return exceptions.ErrQueuePublishFailure(err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.CreatedAt,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, publishing)
	p.mu.Unlock()
	if err != nil {
		p.log.Error("publish failed",
			zap.String("queue", p.queue),
			zap.Int64("order_id", msg.OrderID),
			zap.Error(err),
		)
		return exceptions.ErrQueuePublishFailure(err)
	}

	p.log.Info("order queued",
		zap.String("queue", p.queue),
		zap.Int64("order_id", msg.OrderID),
		zap.Int64("hospital_id", msg.HospitalID),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Relay drains queued messages and forwards them to a delivering Mailer.
type Relay struct {
	target Mailer
	log    *zap.Logger
}

// NewRelay constructs a relay forwarding to target.
func NewRelay(target Mailer, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{target: target, log: log}
}

// ErrDeliveriesClosed is returned by Run when the broker closes the
// deliveries channel before ctx is cancelled.
var ErrDeliveriesClosed = errors.New("amqp: deliveries channel closed")

// Run consumes deliveries until ctx is cancelled. A closed channel ends the
// loop with ErrDeliveriesClosed unless ctx is already done.
func (r *Relay) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			r.handle(ctx, delivery)
		}
	}
}

func (r *Relay) handle(ctx context.Context, delivery amqp.Delivery) {
	msg, err := DecodeQueued(delivery.Body)
	if err != nil {
		r.log.Error("discarding undecodable mail message", zap.Error(err), zap.String("message_id", delivery.MessageId))
		_ = delivery.Reject(false)
		return
	}

	if err := r.target.Send(ctx, msg); err != nil {
		// one redelivery, then drop
		requeue := !delivery.Redelivered
		r.log.Error("failed to relay mail message",
			zap.Error(err),
			zap.Int("recipients", len(msg.To)),
			zap.Bool("requeue", requeue),
		)
		_ = delivery.Nack(false, requeue)
		return
	}

	r.log.Info("mail message relayed", zap.Int("recipients", len(msg.To)), zap.String("subject", msg.Subject))
	_ = delivery.Ack(false)
}

// Consumer owns the broker connection feeding a Relay.
type Consumer struct {
	deliveries <-chan amqp.Delivery
	closeFn    func() error
}

// DialConsumer connects to the broker, declares the mail queue and starts
// consuming with a prefetch of one so unacked messages stay on the broker.
func DialConsumer(cfg AMQPSettings, tag string) (*Consumer, error) {
	const op = "amqp.Consume"

	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%s: url is required", op)
	}
	queue := queueName(cfg.Queue)

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	closeAll := func() error {
		return multierr.Combine(ch.Close(), conn.Close())
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("%s: %w", op, err), closeAll())
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, multierr.Append(fmt.Errorf("%s: %w", op, err), closeAll())
	}

	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%s: %w", op, err), closeAll())
	}

	return &Consumer{deliveries: deliveries, closeFn: closeAll}, nil
}

// Deliveries returns the channel of queued messages.
func (c *Consumer) Deliveries() <-chan amqp.Delivery {
	return c.deliveries
}

// Close stops consuming and closes the connection.
func (c *Consumer) Close() error {
	if c == nil || c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

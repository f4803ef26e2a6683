package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "authflow.mail"

// Publisher is the subset of *amqp.Channel used to enqueue mail.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSettings configure the queued mail transport.
type AMQPSettings struct {
	URL   string
	Queue string
	From  string
}

// AMQPMailer hands messages to a durable queue; a worker relays them over SMTP.
type AMQPMailer struct {
	publisher Publisher
	queue     string
	from      string
	now       func() time.Time
	closeFn   func() error
}

// DialAMQP connects to the broker and declares the durable mail queue.
func DialAMQP(cfg AMQPSettings) (*AMQPMailer, error) {
	const op = "amqp.Dial"

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

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mailer := NewAMQPMailer(ch, queue, cfg.From)
	mailer.closeFn = func() error {
		return multierr.Combine(ch.Close(), conn.Close())
	}
	return mailer, nil
}

// NewAMQPMailer wraps an already declared channel.
func NewAMQPMailer(publisher Publisher, queue, from string) *AMQPMailer {
	return &AMQPMailer{
		publisher: publisher,
		queue:     queueName(queue),
		from:      from,
		now:       time.Now,
	}
}

// Send enqueues the message as a persistent JSON publishing.
func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	const op = "amqp.Send"

	from, recipients, err := prepareEnvelope(msg, m.from)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg.From = from
	msg.To = recipients
	msg.Subject = escapeHeader(msg.Subject)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	err = m.publisher.PublishWithContext(ctx, "", m.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.now(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close releases the broker channel and connection when owned by the mailer.
func (m *AMQPMailer) Close() error {
	if m == nil || m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}

// DecodeQueued parses a publishing body produced by AMQPMailer.
func DecodeQueued(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("amqp: decode message: %w", err)
	}
	if len(uniqueAddresses(msg.To)) == 0 {
		return Message{}, errors.New("amqp: decode message: no recipients")
	}
	return msg, nil
}

func queueName(queue string) string {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return DefaultQueue
	}
	return queue
}

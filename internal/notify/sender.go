package notify

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/mail"
	"github.com/charlesng35/authflow/pkg/metrics"
)

// Sender delivers a rendered HTML email to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// MailSender adapts a pkg/mail transport to Sender.
type MailSender struct {
	mailer mail.Mailer
	from   string
}

// NewMailSender wraps mailer. An empty from uses the transport default.
func NewMailSender(mailer mail.Mailer, from string) *MailSender {
	return &MailSender{mailer: mailer, from: from}
}

// Send implements Sender.
func (s *MailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s == nil || s.mailer == nil {
		return errors.New("notify: mail transport not configured")
	}
	return s.mailer.Send(ctx, mail.Message{
		From:     s.from,
		To:       []string{to},
		Subject:  subject,
		HTMLBody: htmlBody,
	})
}

// Notification is a templated email to a single recipient.
type Notification struct {
	To       string
	Subject  string
	Template string
	Data     TemplateData
}

// Dispatcher renders notifications and hands them to a Sender.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	log      *zap.Logger
}

// NewDispatcher builds a dispatcher over sender using the embedded templates.
func NewDispatcher(sender Sender, log *zap.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("notify: sender is required")
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{renderer: renderer, sender: sender, log: log}, nil
}

// Dispatch renders and sends n. Render failures are returned unchanged;
// transport failures are returned as reported by the Sender.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	to := strings.TrimSpace(n.To)
	if to == "" {
		return errors.New("notify: recipient is required")
	}

	body, err := d.renderer.Render(n.Template, n.Data)
	if err != nil {
		metrics.MailDeliveries.WithLabelValues(n.Template, "render_error").Inc()
		return err
	}

	if err := d.sender.Send(ctx, to, n.Subject, body); err != nil {
		metrics.MailDeliveries.WithLabelValues(n.Template, "failure").Inc()
		d.log.Warn("email delivery failed",
			zap.String("template", n.Template),
			logger.MaskedEmail("to", to),
			zap.Error(err),
		)
		return err
	}

	metrics.MailDeliveries.WithLabelValues(n.Template, "success").Inc()
	d.log.Debug("email dispatched", zap.String("template", n.Template), logger.MaskedEmail("to", to))
	return nil
}

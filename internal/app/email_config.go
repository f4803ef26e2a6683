package app

import (
	"strings"

	"github.com/charlesng35/authflow/pkg/mail"
)

// Supported mail transports.
const (
	TransportSMTP = "smtp"
	TransportAMQP = "amqp"
)

// TransportName returns the normalised transport, defaulting to smtp.
func (c EmailConfig) TransportName() string {
	name := strings.ToLower(strings.TrimSpace(c.Transport))
	if name == "" {
		return TransportSMTP
	}
	return name
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// AMQPSettings converts EmailConfig to the queued transport settings.
func (c EmailConfig) AMQPSettings() mail.AMQPSettings {
	return mail.AMQPSettings{
		URL:   c.AMQP.URL,
		Queue: c.AMQP.Queue,
		From:  c.From,
	}
}

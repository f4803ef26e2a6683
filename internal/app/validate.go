package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var err error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port must be between 1 and 65535 (current: %d)", c.Server.Port))
	}
	if u, parseErr := url.Parse(strings.TrimSpace(c.Server.PublicURL)); parseErr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("server.public_url must be an absolute URL (current: %q)", c.Server.PublicURL))
	}

	if strings.TrimSpace(c.Auth.Tokens.Secret) == "" {
		err = multierr.Append(err, errors.New("auth.tokens.secret must be configured"))
	}
	if strings.TrimSpace(c.Auth.Session.Secret) == "" {
		err = multierr.Append(err, errors.New("auth.session.secret must be configured"))
	}
	if c.Auth.Tokens.Secret != "" && c.Auth.Tokens.Secret == c.Auth.Session.Secret {
		err = multierr.Append(err, errors.New("auth.tokens.secret and auth.session.secret must differ"))
	}

	switch c.Email.TransportName() {
	case TransportSMTP:
		if c.Email.SMTP.Enabled && strings.TrimSpace(c.Email.SMTP.Host) == "" {
			err = multierr.Append(err, errors.New("email.smtp.host must be configured when smtp is enabled"))
		}
	case TransportAMQP:
		if strings.TrimSpace(c.Email.AMQP.URL) == "" {
			err = multierr.Append(err, errors.New("email.amqp.url must be configured for the amqp transport"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("email.transport %q is not supported", c.Email.Transport))
	}

	return err
}

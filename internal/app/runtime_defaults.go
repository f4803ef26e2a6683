package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/authflow/pkg/crypto"
)

const signingSecretBytes = 48

// ApplyRuntimeDefaults ensures signing secrets are populated even when no configuration file is supplied.
// Generated secrets do not survive a restart, so outstanding links and sessions stop verifying.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.Tokens.Secret) == "" {
		secret, err := crypto.GenerateToken(signingSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		cfg.Auth.Tokens.Secret = secret
		generated["auth.tokens.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.Session.Secret) == "" {
		secret, err := crypto.GenerateToken(signingSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.Auth.Session.Secret = secret
		generated["auth.session.secret"] = true
	}

	return generated, nil
}

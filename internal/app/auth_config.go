package app

import (
	"time"

	"github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/middleware"
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret: c.Tokens.Secret,
		Issuer: c.Tokens.Issuer,
		TTL:    c.Tokens.TTL,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	renewAfter := c.Session.RenewAfter
	if renewAfter <= 0 {
		renewAfter = auth.DefaultRenewAfter
	}

	return auth.SessionConfig{
		Secret:     c.Session.Secret,
		Issuer:     c.Tokens.Issuer,
		TTL:        ttl,
		RenewAfter: renewAfter,
	}
}

// SessionCookie describes the browser cookie carrying the session.
func (c AuthConfig) SessionCookie() middleware.SessionCookie {
	return middleware.SessionCookie{
		Name:   c.Session.CookieName,
		Domain: c.Session.CookieDomain,
		Secure: c.Session.CookieSecure,
	}
}

// RateWindow returns the rate limit window with its fallback applied.
func (c RateLimitConfig) RateWindow() time.Duration {
	if c.Window <= 0 {
		return time.Minute
	}
	return c.Window
}

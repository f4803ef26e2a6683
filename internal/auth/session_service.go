package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charlesng35/authflow/internal/models"
)

const (
	// DefaultSessionTTL is the fallback session lifetime.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultRenewAfter is how long a session lives before it is re-issued.
	DefaultRenewAfter = 24 * time.Hour

	sessionAudience = "session"
)

var (
	// ErrSessionInvalid is returned when a credential cannot be decoded or verified.
	ErrSessionInvalid = errors.New("session: invalid credential")
	// ErrSessionExpired signals that the credential has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	RenewAfter time.Duration
	Clock      func() time.Time
}

// Session is a decoded credential. Profile is trusted as embedded at issue time.
type Session struct {
	ID        string
	Profile   models.Profile
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credential is the signed session handed to the client.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

type sessionClaims struct {
	Profile models.Profile `json:"user"`
	jwt.RegisteredClaims
}

// SessionService issues and decodes stateless session credentials.
type SessionService struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	renewAfter time.Duration
	now        func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(cfg SessionConfig) (*SessionService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	renewAfter := cfg.RenewAfter
	if renewAfter <= 0 {
		renewAfter = DefaultRenewAfter
	}
	if renewAfter > ttl {
		renewAfter = ttl
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &SessionService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		ttl:        ttl,
		renewAfter: renewAfter,
		now:        now,
	}, nil
}

// TTL reports the session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a credential carrying the profile.
func (s *SessionService) Issue(profile models.Profile) (Credential, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return Credential{}, errors.New("session: profile id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &sessionClaims{
		Profile: profile,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   profile.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("session: sign credential: %w", err)
	}

	return Credential{Token: signed, ExpiresAt: expiresAt.UTC()}, nil
}

// Decode verifies the credential signature and expiry without a store lookup.
func (s *SessionService) Decode(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)

	var claims sessionClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrSessionInvalid)
	}
	if claims.Profile.ID == "" || claims.Profile.ID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrSessionInvalid)
	}

	session := &Session{
		ID:      claims.ID,
		Profile: claims.Profile,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Renew re-issues the credential once RenewAfter has elapsed since issue.
// The boolean reports whether a new credential was produced.
func (s *SessionService) Renew(session *Session) (Credential, bool, error) {
	if session == nil {
		return Credential{}, false, ErrSessionInvalid
	}
	if s.now().Sub(session.IssuedAt) < s.renewAfter {
		return Credential{}, false, nil
	}

	cred, err := s.Issue(session.Profile)
	if err != nil {
		return Credential{}, false, err
	}
	return cred, true, nil
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL defines the fallback validity period for activation and reset tokens.
const DefaultTokenTTL = 24 * time.Hour

// TokenPurpose binds a token to the workflow it was issued for.
type TokenPurpose string

const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

func (p TokenPurpose) valid() bool {
	return p == PurposeActivation || p == PurposePasswordReset
}

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// TokenClaims represents the custom claims embedded in issued tokens.
type TokenClaims struct {
	AccountID string       `json:"uid"`
	Purpose   TokenPurpose `json:"purpose"`
	Version   int          `json:"ver"`
	jwt.RegisteredClaims
}

// TokenClaim holds the parameters used when generating a new token.
type TokenClaim struct {
	AccountID string
	Purpose   TokenPurpose
	Version   int
}

// TokenService issues and verifies time-limited signed tokens carried in emailed links.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService when provided with the required configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL reports the default token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token with the default lifetime.
func (s *TokenService) Issue(claim TokenClaim) (string, error) {
	return s.IssueWithTTL(claim, s.ttl)
}

// IssueWithTTL signs a token that expires after ttl.
func (s *TokenService) IssueWithTTL(claim TokenClaim, ttl time.Duration) (string, error) {
	if strings.TrimSpace(claim.AccountID) == "" {
		return "", errors.New("token: account id is required")
	}
	if !claim.Purpose.valid() {
		return "", fmt.Errorf("token: unknown purpose %q", claim.Purpose)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	claims := &TokenClaims{
		AccountID: claim.AccountID,
		Purpose:   claim.Purpose,
		Version:   claim.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claim.AccountID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}

// Verify returns the claims of a valid token issued for purpose. Any failure
// (bad signature, algorithm, expiry, issuer or purpose) yields false.
func (s *TokenService) Verify(token string, purpose TokenPurpose) (*TokenClaims, bool) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, false
	}
	if claims.Purpose != purpose {
		return nil, false
	}
	return claims, true
}

func (s *TokenService) parse(tokenString string) (*TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, errors.New("token: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	var claims TokenClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("token: invalid issuer")
	}

	if claims.AccountID == "" {
		return nil, errors.New("token: missing account id claim")
	}

	return &claims, nil
}

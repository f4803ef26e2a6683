package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/authflow/internal/auth"
	"github.com/charlesng35/authflow/internal/models"
	"github.com/charlesng35/authflow/internal/notify"
	"github.com/charlesng35/authflow/internal/store"
	"github.com/charlesng35/authflow/pkg/crypto"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/metrics"
)

const (
	activationSubject    = "Account Activation"
	resetPasswordSubject = "Reset Password"

	activationPath    = "/auth/activation/"
	resetPasswordPath = "/auth/resetPassword/"
)

// ActivationResult is the business outcome of an activation attempt.
type ActivationResult string

const (
	ActivationAccountNotFound  ActivationResult = "userNotExist"
	ActivationAlreadyActivated ActivationResult = "alreadyActivated"
	ActivationActivated        ActivationResult = "success"
	// ActivationPending means a fresh activation email was sent.
	ActivationPending ActivationResult = "pending"
)

// ResetResult is the business outcome of a password reset.
type ResetResult string

const (
	ResetAccountNotFound ResetResult = "userNotExist"
	ResetSuccess         ResetResult = "success"
)

// RegisterInput carries the sign-up profile. Password is plaintext and never stored.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	Image     string
}

// AuthDeps bundles the collaborators of AuthService.
type AuthDeps struct {
	Accounts store.AccountStore
	Tokens   *auth.TokenService
	Notifier notify.Sender
	// BaseURL is the public origin used to build emailed links.
	BaseURL string
	Clock   func() time.Time
	// SingleUseResetTokens invalidates outstanding reset links once one is used.
	SingleUseResetTokens bool
	Logger               *zap.Logger
}

// AuthService drives registration, activation, sign-in and password reset.
type AuthService struct {
	accounts   store.AccountStore
	tokens     *auth.TokenService
	dispatcher *notify.Dispatcher
	baseURL    string
	now        func() time.Time
	singleUse  bool
	log        *zap.Logger
}

// NewAuthService constructs the workflow with the provided dependencies.
func NewAuthService(deps AuthDeps) (*AuthService, error) {
	if deps.Accounts == nil {
		return nil, errors.New("auth service: account store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("auth service: base url is required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.WithModule("auth")
	}

	dispatcher, err := notify.NewDispatcher(deps.Notifier, log)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	now := time.Now
	if deps.Clock != nil {
		now = deps.Clock
	}

	return &AuthService{
		accounts:   deps.Accounts,
		tokens:     deps.Tokens,
		dispatcher: dispatcher,
		baseURL:    baseURL,
		now:        now,
		singleUse:  deps.SingleUseResetTokens,
		log:        log,
	}, nil
}

// Register creates an unverified account and emails its activation link.
// When only the email fails, the persisted account is returned together with
// an ErrTransport error.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, validationError("Email is required")
	}
	if input.Password == "" {
		return nil, validationError("Password is required")
	}

	digest, err := hashPassword(input.Password)
	if err != nil {
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, err
	}

	account := &models.Account{
		Email:     email,
		Password:  digest,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     strings.TrimSpace(input.Phone),
		Image:     strings.TrimSpace(input.Image),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
			return nil, ErrEmailTaken
		}
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("auth service: create account: %w", err)
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.log.Info("account registered", zap.String("account_id", account.ID))

	if err := s.sendActivation(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}

// Activate marks the account behind token as verified. Repeated or
// concurrent visits of the same link report ActivationAlreadyActivated.
func (s *AuthService) Activate(ctx context.Context, token string) (ActivationResult, error) {
	claims, ok := s.tokens.Verify(token, auth.PurposeActivation)
	if !ok {
		metrics.Activations.WithLabelValues("not_found").Inc()
		return ActivationAccountNotFound, nil
	}

	verifiedAt := s.now().UTC()
	_, err := s.accounts.Update(ctx, claims.AccountID, store.AccountChanges{VerifiedAt: &verifiedAt})
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		metrics.Activations.WithLabelValues("not_found").Inc()
		return ActivationAccountNotFound, nil
	case errors.Is(err, store.ErrAlreadyVerified):
		metrics.Activations.WithLabelValues("already_activated").Inc()
		return ActivationAlreadyActivated, nil
	case err != nil:
		return "", fmt.Errorf("auth service: activate account: %w", err)
	}

	metrics.Activations.WithLabelValues("activated").Inc()
	s.log.Info("account activated", zap.String("account_id", claims.AccountID))
	return ActivationActivated, nil
}

// ResendActivation emails a fresh activation link to an unverified account.
func (s *AuthService) ResendActivation(ctx context.Context, email string) (ActivationResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrAccountNotFound) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("auth service: load account: %w", err)
	}

	if account.IsVerified() {
		return ActivationAlreadyActivated, nil
	}

	if err := s.sendActivation(ctx, account); err != nil {
		return "", err
	}
	return ActivationPending, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable; verification is checked only after the password matches.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	if password == "" {
		metrics.AuthAttempts.WithLabelValues("invalid_input").Inc()
		return nil, validationError("Please provide your password")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrAccountNotFound) {
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("auth service: load account: %w", err)
	}

	match, err := crypto.VerifyPassword(account.Password, password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		s.log.Error("stored password digest is unusable", zap.String("account_id", account.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !match {
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if !account.IsVerified() {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, ErrEmailNotVerified
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	account.Password = ""
	return account, nil
}

// RequestPasswordReset emails a reset link. Unknown addresses are reported
// as ErrAccountNotFound.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrAccountNotFound) {
		metrics.PasswordResets.WithLabelValues("request", "not_found").Inc()
		return ErrAccountNotFound
	}
	if err != nil {
		metrics.PasswordResets.WithLabelValues("request", "error").Inc()
		return fmt.Errorf("auth service: load account: %w", err)
	}

	token, err := s.tokens.Issue(auth.TokenClaim{
		AccountID: account.ID,
		Purpose:   auth.PurposePasswordReset,
		Version:   account.TokenVersion,
	})
	if err != nil {
		metrics.PasswordResets.WithLabelValues("request", "error").Inc()
		return fmt.Errorf("auth service: issue reset token: %w", err)
	}

	err = s.dispatcher.Dispatch(ctx, notify.Notification{
		To:       account.Email,
		Subject:  resetPasswordSubject,
		Template: notify.TemplateResetPassword,
		Data: notify.TemplateData{
			Name: account.FirstName,
			URL:  s.baseURL + resetPasswordPath + token,
		},
	})
	if err != nil {
		metrics.PasswordResets.WithLabelValues("request", "mail_failed").Inc()
		return ErrTransport.WithInternal(err)
	}

	metrics.PasswordResets.WithLabelValues("request", "sent").Inc()
	return nil
}

// CheckResetToken reports whether token would currently be accepted by ResetPassword.
func (s *AuthService) CheckResetToken(ctx context.Context, token string) bool {
	_, ok, err := s.resolveResetToken(ctx, token)
	if err != nil {
		s.log.Warn("reset token check failed", zap.Error(err))
		return false
	}
	return ok
}

// ResetPassword replaces the password of the account behind token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (ResetResult, error) {
	if newPassword == "" {
		return "", validationError("Password is required")
	}

	claims, ok, err := s.resolveResetToken(ctx, token)
	if err != nil {
		metrics.PasswordResets.WithLabelValues("complete", "error").Inc()
		return "", err
	}
	if !ok {
		metrics.PasswordResets.WithLabelValues("complete", "not_found").Inc()
		return ResetAccountNotFound, nil
	}

	digest, err := hashPassword(newPassword)
	if err != nil {
		metrics.PasswordResets.WithLabelValues("complete", "error").Inc()
		return "", err
	}

	changes := store.AccountChanges{PasswordDigest: &digest}
	if s.singleUse {
		version := claims.Version
		changes.ExpectTokenVersion = &version
		changes.BumpTokenVersion = true
	}

	_, err = s.accounts.Update(ctx, claims.AccountID, changes)
	switch {
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, store.ErrVersionMismatch):
		metrics.PasswordResets.WithLabelValues("complete", "not_found").Inc()
		return ResetAccountNotFound, nil
	case err != nil:
		metrics.PasswordResets.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("auth service: update password: %w", err)
	}

	metrics.PasswordResets.WithLabelValues("complete", "success").Inc()
	s.log.Info("password reset", zap.String("account_id", claims.AccountID))
	return ResetSuccess, nil
}

func (s *AuthService) resolveResetToken(ctx context.Context, token string) (*auth.TokenClaims, bool, error) {
	claims, ok := s.tokens.Verify(token, auth.PurposePasswordReset)
	if !ok {
		return nil, false, nil
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("auth service: load account: %w", err)
	}

	if s.singleUse && account.TokenVersion != claims.Version {
		return nil, false, nil
	}
	return claims, true, nil
}

func (s *AuthService) sendActivation(ctx context.Context, account *models.Account) error {
	token, err := s.tokens.Issue(auth.TokenClaim{
		AccountID: account.ID,
		Purpose:   auth.PurposeActivation,
		Version:   account.TokenVersion,
	})
	if err != nil {
		return fmt.Errorf("auth service: issue activation token: %w", err)
	}

	err = s.dispatcher.Dispatch(ctx, notify.Notification{
		To:       account.Email,
		Subject:  activationSubject,
		Template: notify.TemplateActivation,
		Data: notify.TemplateData{
			Name: account.FirstName,
			URL:  s.baseURL + activationPath + token,
		},
	})
	if err != nil {
		return ErrTransport.WithInternal(err)
	}
	return nil
}

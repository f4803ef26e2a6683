package services

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/charlesng35/authflow/pkg/crypto"
	apperrors "github.com/charlesng35/authflow/pkg/errors"
)

// Workflow errors surfaced to handlers. Each renders with its own code and status.
var (
	// ErrEmailTaken is returned when registering an address that already has an account.
	ErrEmailTaken = apperrors.New(apperrors.ErrConflict.Code, "An account with this email already exists", http.StatusConflict)
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = apperrors.New("INVALID_CREDENTIALS", "User name or password is not correct", http.StatusUnauthorized)
	// ErrEmailNotVerified is returned on a correct password for an unactivated account.
	ErrEmailNotVerified = apperrors.New("EMAIL_NOT_VERIFIED", "Please verify your email first", http.StatusForbidden)
	// ErrAccountNotFound is returned when requesting a reset for an unknown email.
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "User does not exist", http.StatusNotFound)
	// ErrTransport wraps mail delivery failures.
	ErrTransport = apperrors.New(apperrors.ErrBadGateway.Code, "Email could not be delivered", http.StatusBadGateway)
	// ErrPasswordTooLong is returned for passwords bcrypt cannot digest.
	ErrPasswordTooLong = apperrors.NewValidation(msgPasswordTooLong, map[string]string{"password": msgPasswordTooLong})
)

const msgPasswordTooLong = "Password is too long, use fewer accented or non-Latin characters"

// hashPassword digests password, turning an overlong one into ErrPasswordTooLong.
func hashPassword(password string) (string, error) {
	digest, err := crypto.HashPassword(password)
	if stdErrors.Is(err, crypto.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("auth service: hash password: %w", err)
	}
	return digest, nil
}

func validationError(message string) *apperrors.AppError {
	return apperrors.NewBadRequest(message)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/models"
)

// AccountChanges describes a partial account update. Nil fields are left as is.
type AccountChanges struct {
	// PasswordDigest replaces the stored bcrypt digest.
	PasswordDigest *string
	// VerifiedAt marks the email verified; applied only while it is still unset.
	VerifiedAt *time.Time
	// ExpectTokenVersion guards the update on the current token version.
	ExpectTokenVersion *int
	// BumpTokenVersion increments the token version in the same statement.
	BumpTokenVersion bool
}

func (c AccountChanges) empty() bool {
	return c.PasswordDigest == nil && c.VerifiedAt == nil && !c.BumpTokenVersion
}

// AccountStore persists accounts keyed by id and unique email.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, id string, changes AccountChanges) (*models.Account, error)
}

// GormAccountStore implements AccountStore on top of gorm.
type GormAccountStore struct {
	db *gorm.DB
}

var _ AccountStore = (*GormAccountStore)(nil)

// NewGormAccountStore constructs a store using the provided database handle.
func NewGormAccountStore(db *gorm.DB) (*GormAccountStore, error) {
	if db == nil {
		return nil, errors.New("account store: db is required")
	}
	return &GormAccountStore{db: db}, nil
}

// FindByEmail looks an account up by its normalised email address.
func (s *GormAccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}

	var account models.Account
	err := s.db.WithContext(ctx).First(&account, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account store: find by email: %w", err)
	}
	return &account, nil
}

// FindByID loads an account by primary key.
func (s *GormAccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrAccountNotFound
	}

	var account models.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account store: find by id: %w", err)
	}
	return &account, nil
}

// Create inserts a new account. A duplicate email yields ErrAccountExists.
func (s *GormAccountStore) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("account store: account is required")
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("account store: create: %w", err)
	}
	return nil
}

// Update applies changes in a single conditional statement and returns the
// refreshed account. When the guard rejects the update the cause is reported
// as ErrAccountNotFound, ErrAlreadyVerified or ErrVersionMismatch.
func (s *GormAccountStore) Update(ctx context.Context, id string, changes AccountChanges) (*models.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrAccountNotFound
	}
	if changes.empty() {
		return s.FindByID(ctx, id)
	}

	updates := map[string]any{}
	query := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id)

	if changes.PasswordDigest != nil {
		updates["password"] = *changes.PasswordDigest
	}
	if changes.VerifiedAt != nil {
		updates["email_verified_at"] = changes.VerifiedAt.UTC()
		query = query.Where("email_verified_at IS NULL")
	}
	if changes.ExpectTokenVersion != nil {
		query = query.Where("token_version = ?", *changes.ExpectTokenVersion)
	}
	if changes.BumpTokenVersion {
		updates["token_version"] = gorm.Expr("token_version + 1")
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("account store: update: %w", result.Error)
	}

	account, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if result.RowsAffected == 0 {
		switch {
		case changes.VerifiedAt != nil && account.IsVerified():
			return account, ErrAlreadyVerified
		case changes.ExpectTokenVersion != nil && account.TokenVersion != *changes.ExpectTokenVersion:
			return account, ErrVersionMismatch
		}
	}

	return account, nil
}

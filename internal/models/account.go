package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a registered user identity keyed by a unique email address.
type Account struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Image     string `gorm:"size:2048" json:"image,omitempty"`

	// EmailVerifiedAt is nil until activation and never cleared afterwards.
	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	// TokenVersion is bumped on password reset when reset links are single use.
	TokenVersion int `gorm:"not null;default:0" json:"-"`
}

// TableName pins the table name independent of naming strategy.
func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate generates the identifier and normalises the email address.
func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = NormalizeEmail(a.Email)
	return nil
}

// IsVerified reports whether the email address has been confirmed.
func (a *Account) IsVerified() bool {
	return a != nil && a.EmailVerifiedAt != nil
}

// Profile returns the password-free view carried in sessions.
func (a *Account) Profile() Profile {
	return Profile{
		ID:              a.ID,
		Email:           a.Email,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Phone:           a.Phone,
		Image:           a.Image,
		EmailVerifiedAt: a.EmailVerifiedAt,
		CreatedAt:       a.CreatedAt,
	}
}

// Profile is the public representation of an account.
type Profile struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	Image           string     `json:"image,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DisplayName joins first and last name, falling back to the email.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return p.Email
	}
	return name
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountBeforeCreateGeneratesID(t *testing.T) {
	var account Account
	if err := account.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if account.ID == "" {
		t.Fatal("expected account ID to be generated")
	}
}

func TestAccountBeforeCreateKeepsExistingID(t *testing.T) {
	account := Account{ID: "fixed"}
	require.NoError(t, account.BeforeCreate(nil))
	require.Equal(t, "fixed", account.ID)
}

func TestAccountBeforeCreateNormalisesEmail(t *testing.T) {
	account := &Account{Email: "  Ada.Lovelace@Example.COM "}
	require.NoError(t, account.BeforeCreate(nil))

	require.Equal(t, "ada.lovelace@example.com", account.Email)
	require.NotEmpty(t, account.ID)
}

func TestAccountProfileOmitsPassword(t *testing.T) {
	verified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	account := &Account{
		ID:              "acc-1",
		Email:           "ada@example.com",
		Password:        "$2a$10$digest",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Phone:           "+12015550123",
		EmailVerifiedAt: &verified,
	}

	profile := account.Profile()
	require.Equal(t, "acc-1", profile.ID)
	require.Equal(t, "Ada Lovelace", profile.DisplayName())
	require.Equal(t, &verified, profile.EmailVerifiedAt)

	payload, err := json.Marshal(profile)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(payload), "digest"))

	raw, err := json.Marshal(account)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "digest"), "account json must not leak the password digest")
}

func TestAccountIsVerified(t *testing.T) {
	var missing *Account
	require.False(t, missing.IsVerified())

	account := &Account{}
	require.False(t, account.IsVerified())

	now := time.Now()
	account.EmailVerifiedAt = &now
	require.True(t, account.IsVerified())
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	require.Equal(t, "ada@example.com", Profile{Email: "ada@example.com"}.DisplayName())
}

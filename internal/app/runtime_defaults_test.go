package app

import (
	"strings"
	"testing"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if cfg.Auth.Tokens.Secret == "" || cfg.Auth.Session.Secret == "" {
		t.Fatal("expected signing secrets to be generated")
	}
	if cfg.Auth.Tokens.Secret == cfg.Auth.Session.Secret {
		t.Fatal("expected distinct secrets")
	}
	if !generated["auth.tokens.secret"] || !generated["auth.session.secret"] {
		t.Fatalf("expected generated map to include both secrets: %#v", generated)
	}
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.Tokens.Secret = strings.Repeat("a", 10)
	cfg.Auth.Session.Secret = strings.Repeat("b", 10)

	generated, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(generated) != 0 {
		t.Fatalf("expected no keys generated, got %#v", generated)
	}
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	if err == nil || !strings.Contains(err.Error(), "config is nil") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}

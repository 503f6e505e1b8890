package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validEnvMap() map[string]string {
	return map[string]string{
		"API_FIRESTORE_PROJECT_ID": "gearbelt-test",
		"API_PAYMENT_ENDPOINT":     "http://payments.example.com/authorize",
		"API_PAYMENT_VENDOR":       "VE001-99",
		"API_AUTH_JWT_SECRET":      "test-secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), ".env")),
		WithoutSystemEnv(),
		WithEnvMap(validEnvMap()),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.Server.ReadTimeout)
	}
	if cfg.Payment.Timeout != 10*time.Second {
		t.Fatalf("unexpected payment timeout: %v", cfg.Payment.Timeout)
	}
	if cfg.Shipping.DefaultCostCents != 1000 {
		t.Fatalf("unexpected default shipping cost: %d", cfg.Shipping.DefaultCostCents)
	}
	if cfg.Mail.Topic != "order-mail" {
		t.Fatalf("unexpected mail topic: %q", cfg.Mail.Topic)
	}
}

func TestLoadOverridesFromEnvMap(t *testing.T) {
	env := validEnvMap()
	env["API_SERVER_PORT"] = "9090"
	env["API_PAYMENT_TIMEOUT"] = "3s"
	env["API_SHIPPING_DEFAULT_COST_CENTS"] = "2500"

	cfg, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), ".env")),
		WithoutSystemEnv(),
		WithEnvMap(env),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Payment.Timeout != 3*time.Second {
		t.Fatalf("expected payment timeout 3s, got %v", cfg.Payment.Timeout)
	}
	if cfg.Shipping.DefaultCostCents != 2500 {
		t.Fatalf("expected shipping default 2500, got %d", cfg.Shipping.DefaultCostCents)
	}
}

func TestLoadReportsMissingFields(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), ".env")),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{}),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := strings.Join(validationErr.Fields(), ",")
	for _, want := range []string{"Firestore.ProjectID", "Payment.Endpoint", "Payment.Vendor", "Auth.JWTSecret"} {
		if !strings.Contains(fields, want) {
			t.Fatalf("expected missing field %s in %q", want, fields)
		}
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := validEnvMap()
	env["API_AUTH_JWT_SECRET"] = "secret://projects/gearbelt/secrets/jwt/versions/latest"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if !strings.HasPrefix(ref, "secret://") {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "resolved-secret", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), ".env")),
		WithoutSystemEnv(),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "resolved-secret" {
		t.Fatalf("expected resolved secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadFailsWhenResolverMissing(t *testing.T) {
	env := validEnvMap()
	env["API_AUTH_JWT_SECRET"] = "sm://projects/gearbelt/secrets/jwt"

	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), ".env")),
		WithoutSystemEnv(),
		WithEnvMap(env),
	)
	if err == nil {
		t.Fatal("expected secret resolution error")
	}

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if !strings.HasPrefix(secretErr.Ref, "secret://") {
		t.Fatalf("expected normalized ref, got %q", secretErr.Ref)
	}
}

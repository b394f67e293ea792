package config

import (
	"testing"
	"time"
)

func validBase(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 3002},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "roadassist", SSLMode: "disable"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Voice: VoiceConfig{APIKey: "key", WebhookURL: "https://relay.example.com/webhooks/voice"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresWebhookSecret(t *testing.T) {
	c := validBase("production")
	c.DB.SSLMode = "require"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without VOICE_WEBHOOK_SECRET")
	}

	c.Voice.WebhookSecret = "hmac-secret"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LocalAllowsMissingWebhookSecret(t *testing.T) {
	c := validBase("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected permissive local mode, got %v", err)
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase("local")
	c.DB.SSLMode = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := validBase("dev")
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Voice.MaxActiveCalls != 1 {
		t.Fatalf("expected default call cap of 1, got %d", c.Voice.MaxActiveCalls)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected default access TTL, got %v", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_VisionDefaultsOnlyWhenEnabled(t *testing.T) {
	c := validBase("dev")
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Vision.Model != "" || c.Vision.RequestTimeout != 0 {
		t.Fatalf("expected no vision defaults without api key")
	}

	c2 := validBase("dev")
	c2.Vision.APIKey = "key"
	if err := c2.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c2.Vision.Model == "" || c2.Vision.RequestTimeout != 30*time.Second {
		t.Fatalf("expected vision defaults applied, got %q / %v", c2.Vision.Model, c2.Vision.RequestTimeout)
	}
}

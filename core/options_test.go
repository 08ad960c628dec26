package core

import (
	"context"
	"testing"
)

func TestCfgxConfigProvider_AppliesDefaultsAndOverrides(t *testing.T) {
	provider := NewCfgxConfigProvider(NewStaticRawConfigLoader(map[string]any{
		"token": map[string]any{
			"secret":      "loaded-secret",
			"min_seconds": 5,
		},
	}))

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "leads" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Token.Secret != "loaded-secret" {
		t.Fatalf("expected loaded secret, got %q", cfg.Token.Secret)
	}
	if cfg.Token.MinSeconds != 5 {
		t.Fatalf("expected loaded min seconds, got %d", cfg.Token.MinSeconds)
	}
	if cfg.Token.LifetimeSeconds != 3600 {
		t.Fatalf("expected default lifetime, got %d", cfg.Token.LifetimeSeconds)
	}
}

func TestGoOptionsResolver_RuntimeWinsOverConfig(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{Token: TimingTokenConfig{Secret: "from-config", MinSeconds: 4}}
	runtime := Config{Token: TimingTokenConfig{Secret: "from-runtime"}}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if resolved.Token.Secret != "from-runtime" {
		t.Fatalf("expected runtime secret to win, got %q", resolved.Token.Secret)
	}
	if resolved.Token.MinSeconds != 4 {
		t.Fatalf("expected config min seconds to survive, got %d", resolved.Token.MinSeconds)
	}
	if resolved.Delivery.CRM.MaxAttempts != 5 {
		t.Fatalf("expected default crm attempts, got %d", resolved.Delivery.CRM.MaxAttempts)
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected service name validation error")
	}

	cfg = DefaultConfig()
	cfg.Token.LifetimeSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected lifetime validation error")
	}

	cfg = DefaultConfig()
	cfg.Delivery.CRM.MaxAttempts = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected retry validation error")
	}
}

func TestDeliveryConfig_RetryForNormalizesZeroDelays(t *testing.T) {
	cfg := DeliveryConfig{CRM: RetryConfig{MaxAttempts: 5}}
	retry := cfg.RetryFor(ChannelCRM)
	if retry.BaseDelaySeconds != 60 || retry.MaxDelaySeconds != 300 {
		t.Fatalf("expected normalized delays, got %+v", retry)
	}
	if retry.MaxAttempts != 5 {
		t.Fatalf("expected attempts preserved, got %d", retry.MaxAttempts)
	}
}

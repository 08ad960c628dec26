package core

import (
	"fmt"
	"strings"
)

type TimingTokenConfig struct {
	Secret          string `koanf:"secret" mapstructure:"secret"`
	LifetimeSeconds int    `koanf:"lifetime_seconds" mapstructure:"lifetime_seconds"`
	MinSeconds      int    `koanf:"min_seconds" mapstructure:"min_seconds"`
}

type RetryConfig struct {
	BaseDelaySeconds int `koanf:"base_delay_seconds" mapstructure:"base_delay_seconds"`
	MaxDelaySeconds  int `koanf:"max_delay_seconds" mapstructure:"max_delay_seconds"`
	MaxAttempts      int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type DeliveryConfig struct {
	AdminEmail RetryConfig `koanf:"admin_email" mapstructure:"admin_email"`
	AutoReply  RetryConfig `koanf:"auto_reply" mapstructure:"auto_reply"`
	Webhook    RetryConfig `koanf:"webhook" mapstructure:"webhook"`
	CRM        RetryConfig `koanf:"crm" mapstructure:"crm"`
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Token       TimingTokenConfig `koanf:"token" mapstructure:"token"`
	Delivery    DeliveryConfig    `koanf:"delivery" mapstructure:"delivery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "leads",
		Token: TimingTokenConfig{
			LifetimeSeconds: 3600,
			MinSeconds:      3,
		},
		Delivery: DeliveryConfig{
			AdminEmail: RetryConfig{BaseDelaySeconds: 60, MaxDelaySeconds: 300, MaxAttempts: 3},
			AutoReply:  RetryConfig{BaseDelaySeconds: 60, MaxDelaySeconds: 300, MaxAttempts: 3},
			Webhook:    RetryConfig{BaseDelaySeconds: 60, MaxDelaySeconds: 300, MaxAttempts: 3},
			// The CRM channel is business critical and latency tolerant,
			// so it gets a higher ceiling and a wider backoff cap.
			CRM: RetryConfig{BaseDelaySeconds: 60, MaxDelaySeconds: 600, MaxAttempts: 5},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.LifetimeSeconds <= 0 {
		return fmt.Errorf("core: token.lifetime_seconds must be positive")
	}
	if c.Token.MinSeconds < 0 {
		return fmt.Errorf("core: token.min_seconds must not be negative")
	}
	for _, retry := range []struct {
		name string
		cfg  RetryConfig
	}{
		{"admin_email", c.Delivery.AdminEmail},
		{"auto_reply", c.Delivery.AutoReply},
		{"webhook", c.Delivery.Webhook},
		{"crm", c.Delivery.CRM},
	} {
		if retry.cfg.MaxAttempts < 0 {
			return fmt.Errorf("core: delivery.%s.max_attempts must not be negative", retry.name)
		}
		if retry.cfg.BaseDelaySeconds < 0 || retry.cfg.MaxDelaySeconds < 0 {
			return fmt.Errorf("core: delivery.%s delays must not be negative", retry.name)
		}
	}
	return nil
}

func (c RetryConfig) normalized() RetryConfig {
	out := c
	if out.BaseDelaySeconds <= 0 {
		out.BaseDelaySeconds = 60
	}
	if out.MaxDelaySeconds <= 0 {
		out.MaxDelaySeconds = 300
	}
	return out
}

// RetryFor resolves the retry bounds for a channel.
func (c DeliveryConfig) RetryFor(channel Channel) RetryConfig {
	switch channel {
	case ChannelAdminEmail:
		return c.AdminEmail.normalized()
	case ChannelAutoReply:
		return c.AutoReply.normalized()
	case ChannelWebhook:
		return c.Webhook.normalized()
	case ChannelCRM:
		return c.CRM.normalized()
	}
	return RetryConfig{}.normalized()
}

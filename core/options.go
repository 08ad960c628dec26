package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader wraps literal config values, mostly for tests.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	token := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Token.Secret) != "" {
		token["secret"] = cfg.Token.Secret
	}
	if includeZero || cfg.Token.LifetimeSeconds != 0 {
		token["lifetime_seconds"] = cfg.Token.LifetimeSeconds
	}
	if includeZero || cfg.Token.MinSeconds != 0 {
		token["min_seconds"] = cfg.Token.MinSeconds
	}
	if len(token) > 0 {
		layer["token"] = token
	}

	delivery := map[string]any{}
	for name, retry := range map[string]RetryConfig{
		"admin_email": cfg.Delivery.AdminEmail,
		"auto_reply":  cfg.Delivery.AutoReply,
		"webhook":     cfg.Delivery.Webhook,
		"crm":         cfg.Delivery.CRM,
	} {
		if entry := retryToLayerMap(retry, includeZero); len(entry) > 0 {
			delivery[name] = entry
		}
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}

	return layer
}

func retryToLayerMap(retry RetryConfig, includeZero bool) map[string]any {
	entry := map[string]any{}
	if includeZero || retry.BaseDelaySeconds != 0 {
		entry["base_delay_seconds"] = retry.BaseDelaySeconds
	}
	if includeZero || retry.MaxDelaySeconds != 0 {
		entry["max_delay_seconds"] = retry.MaxDelaySeconds
	}
	if includeZero || retry.MaxAttempts != 0 {
		entry["max_attempts"] = retry.MaxAttempts
	}
	return entry
}

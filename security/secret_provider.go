package security

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-leads/core"
)

// SecretNameTimingToken is the well-known name of the timing-token key.
const SecretNameTimingToken = "leads.timing_token"

// StaticSecretProvider serves secrets from a fixed map. Deployments that
// manage keys externally implement core.SecretProvider themselves.
type StaticSecretProvider struct {
	Secrets map[string]string
}

func NewStaticSecretProvider(secrets map[string]string) *StaticSecretProvider {
	copied := make(map[string]string, len(secrets))
	for name, value := range secrets {
		copied[strings.TrimSpace(name)] = value
	}
	return &StaticSecretProvider{Secrets: copied}
}

func (p *StaticSecretProvider) Secret(_ context.Context, name string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("security: secret provider is not configured")
	}
	name = strings.TrimSpace(name)
	value, ok := p.Secrets[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("security: secret %q not found", name)
	}
	return value, nil
}

// EnvSecretProvider resolves secrets from environment variables with an
// optional prefix, e.g. LEADS_SECRET_ + upper-snake name.
type EnvSecretProvider struct {
	Prefix string
}

func (p EnvSecretProvider) Secret(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("security: secret name is required")
	}
	envKey := p.Prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
	value := strings.TrimSpace(os.Getenv(envKey))
	if value == "" {
		return "", fmt.Errorf("security: secret %q not found in environment (%s)", name, envKey)
	}
	return value, nil
}

var (
	_ core.SecretProvider = (*StaticSecretProvider)(nil)
	_ core.SecretProvider = EnvSecretProvider{}
)

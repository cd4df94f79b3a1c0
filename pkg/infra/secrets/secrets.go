package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Well-known secret names resolved by drover itself. Workflow commands
// receive no secrets implicitly.
const (
	NameRegistryUsername = "registry-username"
	NameRegistryToken    = "registry-token"
	NameDiscordWebhook   = "discord-webhook-url"
	NameSlackWebhook     = "slack-webhook-url"
	NameAPITokenKey      = "api-token-key"
)

// Provider returns the value of a named secret, or
// types.ErrSecretNotFound when it does not hold the name.
type Provider interface {
	Get(ctx context.Context, name string) (types.Secret, error)
}

// Chain resolves secrets through providers in order; the first provider
// holding the name wins.
type Chain struct {
	providers []Provider
}

// NewChain creates a resolver over the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Resolve implements interfaces.SecretResolver.
func (c *Chain) Resolve(ctx context.Context, name string) (types.Secret, error) {
	for _, p := range c.providers {
		v, err := p.Get(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, types.ErrSecretNotFound) {
			return "", goerr.Wrap(err, "secret provider failed", goerr.V("name", name))
		}
	}
	return "", goerr.Wrap(types.ErrSecretNotFound, "no provider holds secret", goerr.V("name", name))
}

const envPrefix = "DROVER_SECRET_"

// EnvProvider reads secrets from DROVER_SECRET_* environment variables.
// The name is uppercased and dashes become underscores:
// "registry-token" → DROVER_SECRET_REGISTRY_TOKEN.
type EnvProvider struct{}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Get implements Provider.
func (p *EnvProvider) Get(_ context.Context, name string) (types.Secret, error) {
	key := envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return types.Secret(v), nil
	}
	return "", types.ErrSecretNotFound
}

// FileProvider reads secrets from a TOML file of `name = "value"` pairs.
// The file is loaded lazily on first use.
type FileProvider struct {
	path string

	once    sync.Once
	values  map[string]string
	loadErr error
}

// NewFileProvider creates a TOML file provider. An empty path yields a
// provider that never resolves anything.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Get implements Provider.
func (p *FileProvider) Get(_ context.Context, name string) (types.Secret, error) {
	if p.path == "" {
		return "", types.ErrSecretNotFound
	}

	p.once.Do(func() {
		data, err := os.ReadFile(p.path)
		if err != nil {
			p.loadErr = goerr.Wrap(err, "failed to read secrets file", goerr.V("path", p.path))
			return
		}
		if err := toml.Unmarshal(data, &p.values); err != nil {
			p.loadErr = goerr.Wrap(err, "failed to parse secrets file", goerr.V("path", p.path))
		}
	})
	if p.loadErr != nil {
		return "", p.loadErr
	}

	if v, ok := p.values[name]; ok && v != "" {
		return types.Secret(v), nil
	}
	return "", types.ErrSecretNotFound
}

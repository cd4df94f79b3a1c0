package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/secrets"
)

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()
	p := secrets.NewEnvProvider()

	t.Setenv("DROVER_SECRET_REGISTRY_TOKEN", "tok-123")

	v, err := p.Get(ctx, "registry-token")
	gt.NoError(t, err)
	gt.Value(t, v.Unmask()).Equal("tok-123")

	_, err = p.Get(ctx, "absent-name")
	gt.True(t, errors.Is(err, types.ErrSecretNotFound))
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets.toml")
	content := "registry-token = \"from-file\"\n\"discord-webhook-url\" = \"https://example.com/hook\"\n"
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p := secrets.NewFileProvider(path)

	v, err := p.Get(ctx, "registry-token")
	gt.NoError(t, err)
	gt.Value(t, v.Unmask()).Equal("from-file")

	v, err = p.Get(ctx, "discord-webhook-url")
	gt.NoError(t, err)
	gt.Value(t, v.Unmask()).Equal("https://example.com/hook")

	_, err = p.Get(ctx, "missing")
	gt.True(t, errors.Is(err, types.ErrSecretNotFound))
}

func TestFileProvider_EmptyPath(t *testing.T) {
	p := secrets.NewFileProvider("")
	_, err := p.Get(context.Background(), "anything")
	gt.True(t, errors.Is(err, types.ErrSecretNotFound))
}

func TestFileProvider_MissingFile(t *testing.T) {
	p := secrets.NewFileProvider(filepath.Join(t.TempDir(), "absent.toml"))
	_, err := p.Get(context.Background(), "anything")
	gt.Error(t, err)
	gt.True(t, !errors.Is(err, types.ErrSecretNotFound))
}

func TestFileProvider_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	gt.NoError(t, os.WriteFile(path, []byte("not == toml"), 0o600))

	p := secrets.NewFileProvider(path)
	_, err := p.Get(context.Background(), "anything")
	gt.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "secrets.toml")
	gt.NoError(t, os.WriteFile(path, []byte("registry-token = \"file-value\"\nonly-in-file = \"yes\"\n"), 0o600))

	t.Setenv("DROVER_SECRET_REGISTRY_TOKEN", "env-value")

	chain := secrets.NewChain(secrets.NewEnvProvider(), secrets.NewFileProvider(path))

	// Env wins over file.
	v, err := chain.Resolve(ctx, "registry-token")
	gt.NoError(t, err)
	gt.Value(t, v.Unmask()).Equal("env-value")

	// Fallthrough to file.
	v, err = chain.Resolve(ctx, "only-in-file")
	gt.NoError(t, err)
	gt.Value(t, v.Unmask()).Equal("yes")

	// Nobody holds it.
	_, err = chain.Resolve(ctx, "nope")
	gt.True(t, errors.Is(err, types.ErrSecretNotFound))
}

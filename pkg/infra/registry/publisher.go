package registry

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

const (
	artifactType = "application/vnd.drover.run.v1"
	logMediaType = "application/vnd.drover.run.logs.tar+gzip"

	pushAttempts  = 3
	pushBaseDelay = 500 * time.Millisecond
)

// Publisher pushes run log bundles as OCI artifacts, tagged with the run
// ID under a fixed artifact repository.
type Publisher struct {
	repoPath  string
	username  string
	token     types.Secret
	plainHTTP bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithCredentials sets static registry credentials.
func WithCredentials(username string, token types.Secret) Option {
	return func(p *Publisher) {
		p.username = username
		p.token = token
	}
}

// WithPlainHTTP allows plain-HTTP registries, for local development.
func WithPlainHTTP() Option {
	return func(p *Publisher) {
		p.plainHTTP = true
	}
}

// New creates a Publisher for the given artifact repository path
// (e.g. "reg.example.com/acme/drover-runs").
func New(repoPath string, options ...Option) *Publisher {
	p := &Publisher{repoPath: repoPath}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// PublishRunLogs archives logDir and pushes it as an OCI 1.1 artifact
// tagged with the run ID. Returns the pushed reference.
func (p *Publisher) PublishRunLogs(ctx context.Context, run *model.Run, logDir string) (string, error) {
	if p.repoPath == "" {
		return "", goerr.New("artifact repository is not configured")
	}
	if !model.ValidRunID(run.ID) {
		return "", goerr.New("refusing to tag with invalid run ID", goerr.V("run_id", run.ID))
	}

	archive, err := tarGzDir(logDir)
	if err != nil {
		return "", err
	}

	repo, err := remote.NewRepository(p.repoPath)
	if err != nil {
		return "", goerr.Wrap(err, "invalid artifact repository", goerr.V("repository", p.repoPath))
	}
	repo.PlainHTTP = p.plainHTTP
	if p.username != "" {
		repo.Client = &auth.Client{
			Cache: auth.NewCache(),
			Credential: auth.StaticCredential(registryHost(p.repoPath), auth.Credential{
				Username: p.username,
				Password: p.token.Unmask(),
			}),
		}
	}

	annotations := map[string]string{
		ocispec.AnnotationCreated: time.Now().UTC().Format(time.RFC3339),
		"dev.drover.workflow":     run.Workflow,
		"dev.drover.repository":   run.Repository,
		"dev.drover.revision":     run.Commit,
		"dev.drover.status":       string(run.Status),
	}

	ref := p.repoPath + ":" + run.ID
	push := func() error {
		blobDesc, err := oras.PushBytes(ctx, repo, logMediaType, archive)
		if err != nil {
			return goerr.Wrap(err, "failed to push log blob")
		}
		manDesc, err := oras.PackManifest(ctx, repo, oras.PackManifestVersion1_1, artifactType,
			oras.PackManifestOptions{
				Layers:              []ocispec.Descriptor{blobDesc},
				ManifestAnnotations: annotations,
			})
		if err != nil {
			return goerr.Wrap(err, "failed to pack artifact manifest")
		}
		if _, err := oras.Tag(ctx, repo, manDesc.Digest.String(), run.ID); err != nil {
			return goerr.Wrap(err, "failed to tag artifact")
		}
		return nil
	}

	// Blob and tag operations are content addressed, so the whole
	// sequence is safe to retry.
	var lastErr error
	for attempt := 0; attempt < pushAttempts; attempt++ {
		if attempt > 0 {
			delay := pushBaseDelay << (attempt - 1)
			ctxlog.From(ctx).Warn("retrying artifact push",
				"ref", ref, "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", goerr.Wrap(ctx.Err(), "artifact push cancelled", goerr.V("ref", ref))
			}
		}
		if lastErr = push(); lastErr == nil {
			return ref, nil
		}
	}
	return "", goerr.Wrap(lastErr, "artifact push failed", goerr.V("ref", ref))
}

// registryHost returns the registry component of a repository path.
func registryHost(repoPath string) string {
	if i := strings.Index(repoPath, "/"); i >= 0 {
		return repoPath[:i]
	}
	return repoPath
}

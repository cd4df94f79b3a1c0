package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

func TestTarGzDir(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "build.log"), []byte("step one\n"), 0o644))
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "jobs"), 0o755))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "jobs", "test.log"), []byte("ok\n"), 0o644))

	data, err := tarGzDir(dir)
	gt.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(data))
	gt.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		gt.NoError(t, err)
		content, err := io.ReadAll(tr)
		gt.NoError(t, err)
		entries[hdr.Name] = string(content)
	}

	gt.Equal(t, len(entries), 2)
	gt.Value(t, entries["build.log"]).Equal("step one\n")
	gt.Value(t, entries["jobs/test.log"]).Equal("ok\n")
}

func TestTarGzDir_MissingDir(t *testing.T) {
	_, err := tarGzDir(filepath.Join(t.TempDir(), "absent"))
	gt.Error(t, err)
}

func TestPublisher_Guards(t *testing.T) {
	ctx := context.Background()
	run := &model.Run{ID: "11111111-1111-1111-1111-111111111111"}

	t.Run("unconfigured repository", func(t *testing.T) {
		_, err := New("").PublishRunLogs(ctx, run, t.TempDir())
		gt.Error(t, err)
	})

	t.Run("invalid run ID refused", func(t *testing.T) {
		p := New("reg.example.com/acme/runs")
		_, err := p.PublishRunLogs(ctx, &model.Run{ID: "../evil"}, t.TempDir())
		gt.Error(t, err)
	})
}

func TestRegistryHost(t *testing.T) {
	gt.Value(t, registryHost("reg.example.com/acme/runs")).Equal("reg.example.com")
	gt.Value(t, registryHost("localhost:5000/runs")).Equal("localhost:5000")
	gt.Value(t, registryHost("bare")).Equal("bare")
}

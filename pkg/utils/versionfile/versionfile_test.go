package versionfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/utils/versionfile"
)

func writeTemp(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestRewrite_JSON(t *testing.T) {
	path := writeTemp(t, "package.json",
		`{"name": "app", "version": "0.0.0-dev", "private": true}`, 0o644)

	gt.NoError(t, versionfile.Rewrite(path, "version", "v1.2.0"))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.String(t, string(data)).Contains(`"version": "v1.2.0"`)
	gt.String(t, string(data)).Contains(`"name": "app"`)
}

func TestRewrite_JSONNestedKey(t *testing.T) {
	path := writeTemp(t, "config.json", `{"app": {"version": "dev"}}`, 0o644)

	gt.NoError(t, versionfile.Rewrite(path, "app.version", "v2.0.0"))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.String(t, string(data)).Contains(`"version": "v2.0.0"`)
}

func TestRewrite_JSONMissingKey(t *testing.T) {
	path := writeTemp(t, "package.json", `{"name": "app"}`, 0o644)

	err := versionfile.Rewrite(path, "version", "v1.2.0")
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("key path not found")
}

func TestRewrite_Text(t *testing.T) {
	path := writeTemp(t, "__init__.py",
		"__version__ = \"develop\"\nAPP = \"app\"\n", 0o644)

	gt.NoError(t, versionfile.Rewrite(path, `"develop"`, `"v1.2.0"`))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Value(t, string(data)).Equal("__version__ = \"v1.2.0\"\nAPP = \"app\"\n")
}

func TestRewrite_TextFirstMatchOnly(t *testing.T) {
	path := writeTemp(t, "notes.txt", "dev dev dev", 0o644)

	gt.NoError(t, versionfile.Rewrite(path, "dev", "v1"))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Value(t, string(data)).Equal("v1 dev dev")
}

func TestRewrite_TextPatternMissing(t *testing.T) {
	path := writeTemp(t, "notes.txt", "nothing to see", 0o644)

	err := versionfile.Rewrite(path, "absent-version", "v1")
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("pattern not found")
}

func TestRewrite_TextBadPattern(t *testing.T) {
	path := writeTemp(t, "notes.txt", "x", 0o644)

	err := versionfile.Rewrite(path, "[", "v1")
	gt.Error(t, err)
}

func TestRewrite_PreservesMode(t *testing.T) {
	path := writeTemp(t, "release.sh", "VERSION=dev\n", 0o755)

	gt.NoError(t, versionfile.Rewrite(path, "dev", "v1.2.0"))

	info, err := os.Stat(path)
	gt.NoError(t, err)
	gt.Value(t, info.Mode().Perm()).Equal(os.FileMode(0o755))
}

func TestRewrite_MissingFile(t *testing.T) {
	err := versionfile.Rewrite(filepath.Join(t.TempDir(), "absent.json"), "version", "v1")
	gt.Error(t, err)
}

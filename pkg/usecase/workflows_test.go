package usecase_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/usecase"
)

func writeWorkflow(t *testing.T, dir, file, name string) string {
	t.Helper()
	body := "name: " + name + "\non:\n  push:\n    branches: [main]\njobs:\n  a:\n    steps:\n      - run: echo hi\n"
	path := filepath.Join(dir, file)
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWorkflows_Directory(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "b-second.yml", "second")
	writeWorkflow(t, dir, "a-first.yaml", "first")
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	ws, err := usecase.LoadWorkflows(dir)
	gt.NoError(t, err)
	gt.Number(t, len(ws)).Equal(2)
	gt.Value(t, ws[0].Name).Equal("first")
	gt.Value(t, ws[1].Name).Equal("second")
}

func TestLoadWorkflows_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkflow(t, dir, "release.yml", "release")

	ws, err := usecase.LoadWorkflows(path)
	gt.NoError(t, err)
	gt.Number(t, len(ws)).Equal(1)
	gt.Value(t, ws[0].Name).Equal("release")
}

func TestLoadWorkflows_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "one.yml", "release")
	writeWorkflow(t, dir, "two.yml", "release")

	_, err := usecase.LoadWorkflows(dir)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("duplicate workflow name")
}

func TestLoadWorkflows_EmptyDirectory(t *testing.T) {
	_, err := usecase.LoadWorkflows(t.TempDir())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("no workflow files")
}

func TestLoadWorkflows_MissingPath(t *testing.T) {
	_, err := usecase.LoadWorkflows(filepath.Join(t.TempDir(), "nope"))
	gt.Error(t, err)
}

func TestLoadWorkflowFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	gt.NoError(t, os.WriteFile(path, []byte("name: x\njobs:\n  a:\n    needs: [ghost]\n"), 0o644))

	_, err := usecase.LoadWorkflowFile(path)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("invalid workflow file")
}

package usecase

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// LoadWorkflows reads workflow definitions from path. A directory loads
// every *.yml and *.yaml file in it (sorted by name, no recursion); a
// plain file loads just that file. Workflow names must be unique across
// the loaded set.
func LoadWorkflows(path string) ([]*model.Workflow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat workflow path", goerr.V("path", path))
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read workflow directory", goerr.V("path", path))
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext == ".yml" || ext == ".yaml" {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		return nil, goerr.New("no workflow files found", goerr.V("path", path))
	}

	seen := make(map[string]string, len(files))
	workflows := make([]*model.Workflow, 0, len(files))
	for _, file := range files {
		w, err := LoadWorkflowFile(file)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[w.Name]; ok {
			return nil, goerr.New("duplicate workflow name",
				goerr.V("workflow", w.Name),
				goerr.V("file", file),
				goerr.V("conflicts_with", prev),
			)
		}
		seen[w.Name] = file
		workflows = append(workflows, w)
	}
	return workflows, nil
}

// LoadWorkflowFile reads and validates a single workflow definition.
func LoadWorkflowFile(path string) (*model.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read workflow file", goerr.V("path", path))
	}
	w, err := model.ParseWorkflow(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid workflow file", goerr.V("path", path))
	}
	return w, nil
}

package model_test

import (
	"slices"
	"testing"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

func TestParams_Expand(t *testing.T) {
	p := model.Params{
		Tag:        "v1.2.0",
		Commit:     "9f2c1d3a8b7e6f5d4c3b2a1908f7e6d5c4b3a291",
		Branch:     "main",
		Repository: "acme/app",
		RunID:      "run-1",
		Workflow:   "release",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "tag",
			input:    "${tag}",
			expected: "v1.2.0",
		},
		{
			name:     "short commit",
			input:    "sha-${short_commit}",
			expected: "sha-9f2c1d3",
		},
		{
			name:     "multiple references",
			input:    "${workflow}-${branch}",
			expected: "release-main",
		},
		{
			name:     "unknown reference left intact",
			input:    "${HOME}/bin",
			expected: "${HOME}/bin",
		},
		{
			name:     "shell variable untouched",
			input:    "echo $PATH",
			expected: "echo $PATH",
		},
		{
			name:     "no references",
			input:    "plain text",
			expected: "plain text",
		},
		{
			name:     "repository and run id",
			input:    "${repository}@${run_id}",
			expected: "acme/app@run-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Expand(tt.input); got != tt.expected {
				t.Errorf("Expand(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParams_ExpandMap(t *testing.T) {
	p := model.Params{Tag: "v1", Commit: "abc1234"}

	got := p.ExpandMap(map[string]string{
		"VERSION": "${tag}",
		"STATIC":  "fixed",
	})
	if got["VERSION"] != "v1" {
		t.Errorf("VERSION = %q, want %q", got["VERSION"], "v1")
	}
	if got["STATIC"] != "fixed" {
		t.Errorf("STATIC = %q, want %q", got["STATIC"], "fixed")
	}

	if p.ExpandMap(nil) != nil {
		t.Error("ExpandMap(nil) should return nil")
	}
}

func TestParams_Env(t *testing.T) {
	p := model.Params{
		Tag:        "v1.2.0",
		Commit:     "abc",
		Branch:     "main",
		Repository: "acme/app",
		RunID:      "r1",
		Workflow:   "release",
	}

	env := p.Env()
	for _, want := range []string{
		"DROVER_TAG=v1.2.0",
		"DROVER_COMMIT=abc",
		"DROVER_BRANCH=main",
		"DROVER_REPOSITORY=acme/app",
		"DROVER_RUN_ID=r1",
		"DROVER_WORKFLOW=release",
	} {
		if !slices.Contains(env, want) {
			t.Errorf("Env() missing %q (got %v)", want, env)
		}
	}
}

func TestShortCommit(t *testing.T) {
	if got := model.ShortCommit("9f2c1d3a8b7e"); got != "9f2c1d3" {
		t.Errorf("ShortCommit() = %q, want %q", got, "9f2c1d3")
	}
	if got := model.ShortCommit("abc"); got != "abc" {
		t.Errorf("ShortCommit() = %q, want %q", got, "abc")
	}
}

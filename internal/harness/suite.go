package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that did not pass.
type SuiteFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the YAML files under path in lexical order. A file
// path is returned as is.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var out []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(p)); ext == ".yaml" || ext == ".yml" {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(out)
	return out, nil
}

// RunSuite loads and runs every scenario under path.
//
// A scenario that fails to load or run counts as failed; the suite keeps
// going. The returned error is reserved for an unreadable path.
func RunSuite(ctx context.Context, path string, opts ...Option) (*SuiteResult, error) {
	paths, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	res := &SuiteResult{}
	for _, p := range paths {
		res.Total++
		fail := func(name string, errs ...string) {
			res.Failed++
			res.Failures = append(res.Failures, SuiteFailure{Scenario: name, Path: p, Errors: errs})
		}

		scenario, err := LoadScenario(p)
		if err != nil {
			fail(filepath.Base(p), fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		result, err := Run(ctx, scenario, opts...)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !result.Pass {
			fail(scenario.Name, result.Errors...)
			continue
		}
		res.Passed++
	}
	return res, nil
}

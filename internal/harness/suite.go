package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/libcheck/internal/isolate"
)

// Suite is a manifest of conformance programs to run.
type Suite struct {
	// Name uniquely identifies this suite in run history.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Dir is the base directory for relative test paths and the working
	// directory of every test. Relative values are resolved against the
	// manifest location.
	Dir string `yaml:"dir,omitempty"`

	// Parallel is the number of tests per fan-out batch. Zero means 1.
	Parallel int `yaml:"parallel,omitempty"`

	// Env is added to the environment of every test.
	Env map[string]string `yaml:"env,omitempty"`

	Tests []TestSpec `yaml:"tests"`
}

// TestSpec describes one conformance program.
type TestSpec struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`

	// Env is added after the suite env, so it wins on conflicts.
	Env map[string]string `yaml:"env,omitempty"`

	// Timeout bounds the run. Zero means no limit.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Skip, when non-empty, is the reason the test is not run.
	Skip string `yaml:"skip,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the terminations a test may end with.
type Expect struct {
	// Signals are the acceptable crash signals, by name or number.
	Signals []string `yaml:"signals,omitempty"`

	// FailCodes are the exit statuses that count as failures.
	// Empty means every non-zero status fails.
	FailCodes []int `yaml:"fail_codes,omitempty"`
}

// Policy converts the expectation into an isolation policy.
// A nil Expect gives isolate.ExitPolicy.
func (e *Expect) Policy() (isolate.Policy, error) {
	if e == nil {
		return isolate.ExitPolicy(), nil
	}
	p := isolate.Policy{FailCodes: e.FailCodes}
	for _, name := range e.Signals {
		sig, err := isolate.ParseSignal(name)
		if err != nil {
			return isolate.Policy{}, err
		}
		p.Signals = append(p.Signals, sig)
	}
	return p, nil
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadSuite reads and parses a suite manifest, resolving relative paths
// against the manifest's directory.
func LoadSuite(path string) (*Suite, error) {
	return LoadSuiteWithBasePath(path, filepath.Dir(path))
}

// LoadSuiteWithBasePath reads and parses a suite manifest, resolving the
// suite dir and test paths relative to basePath.
//
// The manifest is checked against the embedded schema before decoding, then
// decoded strictly so that misspelled keys are rejected.
func LoadSuiteWithBasePath(path, basePath string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	if err := ValidateSchema(path, data); err != nil {
		return nil, err
	}

	suite, err := ParseSuite(data)
	if err != nil {
		return nil, err
	}

	// Resolve paths before validation. Dir must be absolute: the runner
	// starts each test with Dir as working directory, and os/exec would
	// resolve a relative program path against it a second time.
	if !filepath.IsAbs(suite.Dir) {
		dir, err := filepath.Abs(filepath.Join(basePath, suite.Dir))
		if err != nil {
			return nil, fmt.Errorf("resolve suite dir: %w", err)
		}
		suite.Dir = dir
	}
	for i := range suite.Tests {
		p := suite.Tests[i].Path
		if p != "" && !filepath.IsAbs(p) {
			suite.Tests[i].Path = filepath.Join(suite.Dir, p)
		}
	}

	if err := validateSuite(suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return suite, nil
}

// ParseSuite decodes a manifest without touching the filesystem.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &suite, nil
}

// validateSuite checks the rules the schema cannot express.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Parallel < 0 {
		return fmt.Errorf("parallel must be non-negative, got %d", s.Parallel)
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("tests list is required and must be non-empty")
	}

	seen := make(map[string]int, len(s.Tests))
	for i, tc := range s.Tests {
		if tc.Name == "" {
			return fmt.Errorf("tests[%d]: name is required", i)
		}
		if prev, ok := seen[tc.Name]; ok {
			return fmt.Errorf("tests[%d]: duplicate name %q (first at tests[%d])", i, tc.Name, prev)
		}
		seen[tc.Name] = i
		if tc.Path == "" {
			return fmt.Errorf("tests[%d]: path is required", i)
		}
		if tc.Timeout < 0 {
			return fmt.Errorf("tests[%d]: timeout must be non-negative", i)
		}
		if _, err := tc.Expect.Policy(); err != nil {
			return fmt.Errorf("tests[%d].expect: %w", i, err)
		}
		if tc.Expect != nil {
			for _, code := range tc.Expect.FailCodes {
				if code < 1 || code > 255 {
					return fmt.Errorf("tests[%d].expect: fail code %d out of range 1-255", i, code)
				}
			}
		}
	}
	return nil
}

package harness

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/libcheck/internal/isolate"
)

func writeSuite(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadSuite_ValidFile(t *testing.T) {
	dir := t.TempDir()
	p := writeSuite(t, dir, `
name: functional
description: "POSIX functional tests"
dir: build
parallel: 4
env: {TZ: UTC}
tests:
  - name: mq_open
    path: mq_open
    args: ["-v"]
    timeout: 30s
  - name: abs
    path: /bin/true
    expect:
      signals: [SIGSEGV, "11"]
      fail_codes: [1]
`)

	suite, err := LoadSuite(p)
	require.NoError(t, err)

	assert.Equal(t, "functional", suite.Name)
	assert.Equal(t, "POSIX functional tests", suite.Description)
	assert.Equal(t, filepath.Join(dir, "build"), suite.Dir)
	assert.Equal(t, 4, suite.Parallel)
	assert.Equal(t, map[string]string{"TZ": "UTC"}, suite.Env)
	require.Len(t, suite.Tests, 2)

	assert.Equal(t, filepath.Join(dir, "build", "mq_open"), suite.Tests[0].Path)
	assert.Equal(t, []string{"-v"}, suite.Tests[0].Args)
	assert.Equal(t, 30*time.Second, suite.Tests[0].Timeout.Std())
	assert.Nil(t, suite.Tests[0].Expect)

	assert.Equal(t, "/bin/true", suite.Tests[1].Path)
	policy, err := suite.Tests[1].Expect.Policy()
	require.NoError(t, err)
	assert.Equal(t, []syscall.Signal{syscall.SIGSEGV, syscall.SIGSEGV}, policy.Signals)
	assert.Equal(t, []int{1}, policy.FailCodes)
}

func TestLoadSuiteWithBasePath(t *testing.T) {
	dir := t.TempDir()
	p := writeSuite(t, dir, `
name: s
tests:
  - name: a
    path: bin/a
`)

	suite, err := LoadSuiteWithBasePath(p, "/opt/tests")
	require.NoError(t, err)
	assert.Equal(t, "/opt/tests", suite.Dir)
	assert.Equal(t, "/opt/tests/bin/a", suite.Tests[0].Path)
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, err := LoadSuite("/nonexistent/suite.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}

func TestLoadSuite_UnknownField(t *testing.T) {
	_, err := LoadSuite("testdata/suites/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestLoadSuite_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing name",
			content: "tests:\n  - name: a\n    path: a\n",
			errMsg:  "schema",
		},
		{
			name:    "empty tests",
			content: "name: s\ntests: []\n",
			errMsg:  "schema",
		},
		{
			name:    "missing path",
			content: "name: s\ntests:\n  - name: a\n",
			errMsg:  "schema",
		},
		{
			name:    "negative parallel",
			content: "name: s\nparallel: -1\ntests:\n  - name: a\n    path: a\n",
			errMsg:  "schema",
		},
		{
			name:    "fail code out of range",
			content: "name: s\ntests:\n  - name: a\n    path: a\n    expect:\n      fail_codes: [300]\n",
			errMsg:  "schema",
		},
		{
			name:    "duplicate test names",
			content: "name: s\ntests:\n  - name: a\n    path: a\n  - name: a\n    path: b\n",
			errMsg:  `duplicate name "a"`,
		},
		{
			name:    "bad timeout",
			content: "name: s\ntests:\n  - name: a\n    path: a\n    timeout: 30 parsecs\n",
			errMsg:  "unknown unit",
		},
		{
			name:    "unknown signal",
			content: "name: s\ntests:\n  - name: a\n    path: a\n    expect:\n      signals: [SIGNOPE]\n",
			errMsg:  "unknown signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeSuite(t, t.TempDir(), tt.content)
			_, err := LoadSuite(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseSuite_RejectsUnknownFields(t *testing.T) {
	_, err := ParseSuite([]byte("name: s\nparalel: 2\ntests: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestExpect_Policy(t *testing.T) {
	var none *Expect
	policy, err := none.Policy()
	require.NoError(t, err)
	assert.Equal(t, isolate.ExitPolicy(), policy)

	policy, err = (&Expect{Signals: []string{"abrt"}}).Policy()
	require.NoError(t, err)
	assert.Equal(t, []syscall.Signal{syscall.SIGABRT}, policy.Signals)
	assert.Empty(t, policy.FailCodes)

	_, err = (&Expect{Signals: []string{""}}).Policy()
	assert.Error(t, err)
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"minimal", "name: s\ntests:\n  - {name: a, path: a}\n", true},
		{"numeric signal", "name: s\ntests:\n  - {name: a, path: a, expect: {signals: [11]}}\n", true},
		{"args must be strings", "name: s\ntests:\n  - {name: a, path: a, args: [{x: 1}]}\n", false},
		{"env values must be strings", "name: s\nenv: {A: [1]}\ntests:\n  - {name: a, path: a}\n", false},
		{"timeout must be a string", "name: s\ntests:\n  - {name: a, path: a, timeout: 30}\n", false},
		{"unknown top-level key", "name: s\nsuites: []\ntests:\n  - {name: a, path: a}\n", false},
		{"empty document", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema("test.yaml", []byte(tt.input))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateSchema_ReportsIssues(t *testing.T) {
	data, err := os.ReadFile("testdata/suites/typo.yaml")
	require.NoError(t, err)

	err = ValidateSchema("typo.yaml", data)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "typo.yaml", schemaErr.File)
	require.NotEmpty(t, schemaErr.Issues)
	assert.Contains(t, strings.Join(schemaErr.Issues, "\n"), "expcet")
}

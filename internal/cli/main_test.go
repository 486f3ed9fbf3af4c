package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/libcheck/internal/isolate"
)

// TestMain lets the test binary serve as the re-executed child for the
// selftest probes.
func TestMain(m *testing.M) {
	isolate.Main()
	os.Exit(m.Run())
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeManifest writes a suite manifest into a temp dir and returns its path.
func writeManifest(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

const passingSuite = `
name: green
tests:
  - name: ok
    path: /bin/sh
    args: ["-c", "exit 0"]
  - name: crash_expected
    path: /bin/sh
    args: ["-c", "kill -SEGV $$"]
    expect:
      signals: [SIGSEGV]
`

const failingSuite = `
name: red
tests:
  - name: ok
    path: /bin/sh
    args: ["-c", "exit 0"]
  - name: broken
    path: /bin/sh
    args: ["-c", "echo 'strverscmp: mismatch' >&2; exit 1"]
  - name: later
    path: ./later
    skip: not built
`

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/libcheck/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Suite  string   `json:"suite,omitempty"`
	Tests  int      `json:"tests,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite.yaml>",
		Short: "Validate a suite manifest without running it",
		Long: `Validate a suite manifest against the suite schema.

Checks field names and types, expected signals, exit codes and timeouts
without starting any test program.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("suite file not found: %s", path), nil)
	}

	suite, err := harness.LoadSuite(path)
	if err != nil {
		var schemaErr *harness.SchemaError
		if errors.As(err, &schemaErr) && len(schemaErr.Issues) > 0 {
			return outputValidationErrors(formatter, ErrCodeSchema, schemaErr.Issues)
		}
		return outputValidationErrors(formatter, ErrCodeLoadFailed, []string{err.Error()})
	}

	formatter.VerboseLog("Validated %d test(s) in %s", len(suite.Tests), path)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Suite: suite.Name, Tests: len(suite.Tests)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Suite %s valid (%d tests)\n", suite.Name, len(suite.Tests))
	return nil
}

// outputValidationErrors outputs validation errors.
// Validation failures are exit code 1, like failing tests.
func outputValidationErrors(formatter *OutputFormatter, code string, errs []string) error {
	if formatter.Format == "json" {
		err := formatter.Response(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    code,
				Message: errs[0],
			},
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, e)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

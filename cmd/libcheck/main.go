// Command libcheck runs C library conformance suites.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/libcheck/internal/cli"
	"github.com/roach88/libcheck/internal/isolate"
)

func main() {
	// In a re-executed probe child this runs the probe and exits.
	isolate.Main()

	err := cli.NewRootCommand().Execute()
	if err == nil {
		os.Exit(cli.ExitSuccess)
	}

	// Commands print their own failure output; only unexpected errors
	// (flag parsing, bad --format) reach stderr from here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "libcheck:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}

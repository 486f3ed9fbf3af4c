package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/libcheck/internal/harness"
	"github.com/roach88/libcheck/internal/status"
)

// styles holds the text styles for one output stream. Colors are dropped
// automatically when the stream is not a terminal.
type styles struct {
	pass   lipgloss.Style
	fail   lipgloss.Style
	skip   lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		pass:   r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skip:   r.NewStyle().Foreground(lipgloss.Color("3")),
		header: r.NewStyle().Bold(true),
		dim:    r.NewStyle().Faint(true),
	}
}

// renderReport prints a report as one line per test and a summary line.
func renderReport(w io.Writer, report *harness.Report, showOutput bool) {
	st := newStyles(w)

	fmt.Fprintln(w, st.header.Render(fmt.Sprintf("suite %s", report.Suite))+" "+st.dim.Render("run "+report.RunID))

	width := 0
	for _, r := range report.Results {
		width = max(width, len(r.Name))
	}

	for _, r := range report.Results {
		name := r.Name + strings.Repeat(" ", width-len(r.Name))
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "  %s %s  %s\n", st.skip.Render("-"), name, st.dim.Render(r.Reason))
		case r.Pass:
			fmt.Fprintf(w, "  %s %s  %s\n", st.pass.Render("✓"), name, st.dim.Render(fmt.Sprintf("%s (%s)", r.Reason, r.Duration.Round(time.Millisecond))))
		default:
			fmt.Fprintf(w, "  %s %s  %s\n", st.fail.Render("✗"), name, r.Reason)
			if showOutput && r.Output != "" {
				for _, line := range strings.Split(strings.TrimRight(r.Output, "\n"), "\n") {
					fmt.Fprintf(w, "      %s\n", st.dim.Render(line))
				}
			}
		}
	}

	for _, f := range report.Failures {
		if f.Kind == status.KindHarness {
			fmt.Fprintf(w, "  %s %s\n", st.fail.Render("!"), f.Message)
		}
	}

	summary := fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		report.Passed, report.Failed, report.Skipped, report.Duration().Round(time.Millisecond))
	if report.ExitCode == 0 {
		fmt.Fprintln(w, st.pass.Render(summary))
	} else {
		fmt.Fprintln(w, st.fail.Render(summary))
	}
}

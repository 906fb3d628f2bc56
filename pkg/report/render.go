package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/poltergeist/reactor/pkg/types"
)

// RenderOptions controls console rendering
type RenderOptions struct {
	Color bool
	// Conflicts lists version conflict records under each module
	Conflicts bool
}

// Render writes the session report: configuration errors first, then the
// per-module table in build order, then execution errors.
func (r *Reporter) Render(w io.Writer, opts RenderOptions) error {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		return c.Sprint(s)
	}
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	var b strings.Builder

	if errs := r.ConfigErrors(); len(errs) > 0 {
		b.WriteString(paint(red, "Configuration errors:") + "\n")
		for _, err := range errs {
			fmt.Fprintf(&b, "  - %v\n", err)
		}
		b.WriteString("\n")
	}

	summary := r.Summary()
	if len(summary) > 0 {
		b.WriteString("Reactor Summary:\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, res := range summary {
			status := strings.ToUpper(string(res.Status))
			switch res.Status {
			case types.StatusSucceeded:
				status = paint(green, status)
			case types.StatusFailed:
				status = paint(red, status)
			case types.StatusSkipped:
				status = paint(yellow, status)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", res.Module.DisplayName(), res.Module.Coordinate().ID(), status, formatElapsed(res.Elapsed))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if opts.Conflicts {
		for _, res := range summary {
			conflicts := r.ConflictsFor(res.Module)
			if len(conflicts) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\nVersion conflicts in %s:\n", res.Module.DisplayName())
			for _, c := range conflicts {
				fmt.Fprintf(&b, "  %s\n", c)
			}
		}
	}

	var failed []ModuleResult
	for _, res := range summary {
		if res.Status == types.StatusFailed {
			failed = append(failed, res)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n" + paint(red, "Execution errors:") + "\n")
		for _, res := range failed {
			fmt.Fprintf(&b, "  [%s] %v\n", res.Module.DisplayName(), res.Err)
		}
	}

	b.WriteString("\n")
	if r.Success() {
		b.WriteString(paint(green, "BUILD SUCCESS"))
	} else {
		b.WriteString(paint(red, "BUILD FAILURE"))
	}
	fmt.Fprintf(&b, " (%s)\n", formatElapsed(r.Elapsed()))

	_, err := io.WriteString(w, b.String())
	return err
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

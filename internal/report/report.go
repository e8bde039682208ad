// Package report renders pipeline runs for the CLI: run listings, the
// per-environment verdict table and failed-step diagnostics.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runstore"
	"github.com/dustin/go-humanize"
)

// WriteRunList writes a table of run summaries, newest first
func WriteRunList(out io.Writer, runs []runstore.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEVENT\tBRANCH\tSTATUS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Event, r.Branch, r.Status,
			humanize.Time(r.StartedAt),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	w.Flush()
}

// WriteRun writes the full verdict of one run: the aggregate status, a
// per-environment table and the failed step output, if any
func WriteRun(out io.Writer, run *domain.PipelineRun) {
	fmt.Fprintf(out, "run %s: %s (%s on %s, started %s)\n\n",
		run.ID, run.Status, run.Trigger.Event, run.Trigger.Branch, humanize.Time(run.StartedAt))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENVIRONMENT\tSTATUS\tSTEPS\tFAILED AT\tDURATION")
	for _, r := range run.Results {
		failedAt := "-"
		if r.FailedStage != "" {
			failedAt = r.FailedStage + "/" + r.FailedStep
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.EnvironmentID, r.Status, len(r.Steps), failedAt, r.Duration().Round(time.Second))
	}
	w.Flush()

	for _, r := range run.Results {
		if r.Status != domain.RunFailed {
			continue
		}
		for _, s := range r.Steps {
			if s.Status == domain.StepFailed {
				fmt.Fprintf(out, "\n--- %s %s/%s (exit %d) ---\n", r.EnvironmentID, s.Stage, s.Step, s.ExitCode)
				output := strings.TrimRight(s.Output, "\n")
				if output != "" {
					fmt.Fprintln(out, output)
				}
			}
		}
	}
}

// WriteStepLog writes the captured output of every step in one environment
func WriteStepLog(out io.Writer, run *domain.PipelineRun, environmentID string) error {
	for _, r := range run.Results {
		if r.EnvironmentID != environmentID {
			continue
		}
		for _, s := range r.Steps {
			fmt.Fprintf(out, "=== %s/%s: %s (exit %d, %s) ===\n",
				s.Stage, s.Step, s.Status, s.ExitCode, s.Duration.Round(time.Millisecond))
			output := strings.TrimRight(s.Output, "\n")
			if output != "" {
				fmt.Fprintln(out, output)
			}
		}
		return nil
	}
	return fmt.Errorf("run %s has no environment %s", run.ID, environmentID)
}

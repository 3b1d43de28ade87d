// Package checklist runs the final go-live checklist.
//
// Each Check queries a real collaborator (archive digests, the manifest seal,
// the decision log, the notification deduper, metric gates). A check whose
// collaborator is not configured reports UNIMPLEMENTED, which never counts as
// a pass.
package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass          Status = "PASS"
	StatusFail          Status = "FAIL"
	StatusUnimplemented Status = "UNIMPLEMENTED"
)

// Result is one rendered checklist line.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Check is one checklist item.
type Check interface {
	Name() string
	Run(ctx context.Context) []Result
}

func pass(name, format string, args ...any) Result {
	return Result{Name: name, Status: StatusPass, Detail: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Status: StatusFail, Detail: fmt.Sprintf(format, args...)}
}

func unimplemented(name, reason string) Result {
	return Result{Name: name, Status: StatusUnimplemented, Detail: reason}
}

// Report is the outcome of a full run.
type Report struct {
	GeneratedAt string   `json:"generated_at"`
	Passed      bool     `json:"passed"`
	Results     []Result `json:"results"`
}

// Counts returns the number of results per status.
func (r Report) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Runner executes checks in order.
type Runner struct {
	checks []Check
	clock  func() time.Time
}

func NewRunner(checks ...Check) *Runner {
	return &Runner{checks: checks, clock: time.Now}
}

// Run executes every check; it does not stop at the first failure so the
// report is complete.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{
		GeneratedAt: r.clock().UTC().Format(time.RFC3339),
		Results:     make([]Result, 0, len(r.checks)),
	}
	for _, c := range r.checks {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, fail(c.Name(), "not run: %v", err))
			continue
		}
		report.Results = append(report.Results, c.Run(ctx)...)
	}

	report.Passed = len(report.Results) > 0
	for _, res := range report.Results {
		if res.Status != StatusPass {
			report.Passed = false
			break
		}
	}
	return report
}

// WriteText renders the report for human review.
func (r Report) WriteText(w io.Writer) error {
	for _, res := range r.Results {
		line := fmt.Sprintf("[%s] %s", res.Status, res.Name)
		if res.Detail != "" {
			line += ": " + res.Detail
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	counts := r.Counts()
	verdict := "GO"
	if !r.Passed {
		verdict = "NO_GO"
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed, %d unimplemented: %s\n",
		counts[StatusPass], counts[StatusFail], counts[StatusUnimplemented], verdict)
	return err
}

// WriteJSON renders the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

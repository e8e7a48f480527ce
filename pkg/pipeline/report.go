// pkg/pipeline/report.go

package pipeline

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
)

// Report is the record of one run, rendered as text, JSON or YAML.
type Report struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time         `json:"finished_at" yaml:"finished_at"`
	Succeeded  bool              `json:"succeeded" yaml:"succeeded"`
	FailedStep string            `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	Output     string            `json:"output,omitempty" yaml:"output,omitempty"`
	Hints      []string          `json:"hints,omitempty" yaml:"hints,omitempty"`
	Steps      []StepResult      `json:"steps" yaml:"steps"`
	Warnings   []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Summary    map[string]string `json:"summary,omitempty" yaml:"summary,omitempty"`

	warnings *multierror.Error
}

// Warn records a tolerated failure.
func (r *Report) Warn(step string, err error) {
	if err == nil {
		return
	}
	r.warnings = multierror.Append(r.warnings, &StepWarning{Step: step, Err: err})
	r.Warnings = append(r.Warnings, step+": "+err.Error())
}

// WarningErrors returns every tolerated failure, or nil.
func (r *Report) WarningErrors() error {
	return r.warnings.ErrorOrNil()
}

// Step returns the result recorded for name.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Ran reports whether step name was executed at all.
func (r *Report) Ran(name string) bool {
	s, ok := r.Step(name)
	return ok && s.Status != StatusSkipped
}

func (r *Report) fail(step string, err error) {
	r.Succeeded = false
	r.FailedStep = step
	r.Error = err.Error()
	if de, ok := hermes_err.As(err); ok {
		r.ErrorKind = de.Kind.String()
		r.Output = hermes_err.Tail(de.Output, OutputTailLines)
		r.Hints = de.Remediation
	}
}

// OutputTailLines bounds the command output kept in a failed report.
const OutputTailLines = 20

// StepWarning ties a tolerated error to the step that produced it.
type StepWarning struct {
	Step string
	Err  error
}

func (w *StepWarning) Error() string { return w.Step + ": " + w.Err.Error() }
func (w *StepWarning) Unwrap() error { return w.Err }

// FailedReport records a failure that happened before any step ran,
// e.g. an invalid configuration.
func FailedReport(runID, step string, err error) *Report {
	now := time.Now()
	r := &Report{RunID: runID, StartedAt: now, FinishedAt: now, Summary: map[string]string{}}
	r.fail(step, err)
	return r
}

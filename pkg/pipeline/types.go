// Package pipeline runs the ordered deployment steps and applies each step's
// failure policy: a fatal step aborts the run, a tolerant step only warns.
package pipeline

import (
	"context"
	"time"
)

// Policy decides what a step failure does to the run.
type Policy int

const (
	// Fatal aborts the run and skips every later step.
	Fatal Policy = iota
	// Tolerant records a warning and continues.
	Tolerant
)

func (p Policy) String() string {
	if p == Tolerant {
		return "tolerant"
	}
	return "fatal"
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Status is the outcome of one step.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Step is one unit of the deployment.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// StepResult records how a step ended.
type StepResult struct {
	Name     string        `json:"name" yaml:"name"`
	Policy   Policy        `json:"policy" yaml:"policy"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Observer is told about progress as it happens, e.g. to print status lines.
type Observer interface {
	StepStarted(name string)
	StepFinished(result StepResult)
	Warned(step string, err error)
}

type nopObserver struct{}

func (nopObserver) StepStarted(string)      {}
func (nopObserver) StepFinished(StepResult) {}
func (nopObserver) Warned(string, error)    {}

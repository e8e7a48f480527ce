// pkg/pipeline/runner.go

package pipeline

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// Runner executes steps strictly in order.
type Runner struct {
	observer Observer
	report   *Report
	now      func() time.Time
}

// NewRunner returns a runner whose report carries runID.
func NewRunner(runID string, obs Observer) *Runner {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Runner{
		observer: obs,
		report:   &Report{RunID: runID, Summary: map[string]string{}},
		now:      time.Now,
	}
}

// Report returns the report, which is complete once Run has returned.
func (r *Runner) Report() *Report { return r.report }

// Warn lets a step record a tolerated failure without failing itself,
// e.g. a failed pull that falls back to the existing working copy.
func (r *Runner) Warn(ctx context.Context, step string, err error) {
	if err == nil {
		return
	}
	otelzap.Ctx(ctx).Warn("Continuing after tolerated failure", zap.String("step", step), zap.Error(err))
	r.report.Warn(step, err)
	r.observer.Warned(step, err)
}

// Run executes steps until one fatal step fails. The returned error is that
// step's error; tolerant failures never produce an error.
func (r *Runner) Run(ctx context.Context, steps []Step) (*Report, error) {
	logger := otelzap.Ctx(ctx)
	rep := r.report
	rep.StartedAt = r.now()
	rep.Succeeded = true
	defer func() { rep.FinishedAt = r.now() }()

	var runErr error
	for _, step := range steps {
		if runErr != nil {
			rep.Steps = append(rep.Steps, StepResult{Name: step.Name, Policy: step.Policy, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = cerr.Wrapf(err, "interrupted before %s", step.Name)
			rep.fail(step.Name, runErr)
			rep.Steps = append(rep.Steps, StepResult{Name: step.Name, Policy: step.Policy, Status: StatusSkipped})
			continue
		}

		res := r.runStep(ctx, step)
		rep.Steps = append(rep.Steps, res.StepResult)
		r.observer.StepFinished(res.StepResult)

		if res.err == nil {
			continue
		}
		if step.Policy == Tolerant {
			logger.Warn("Tolerant step failed", zap.String("step", step.Name), zap.Error(res.err))
			rep.Warn(step.Name, res.err)
			r.observer.Warned(step.Name, res.err)
			continue
		}
		logger.Error("Step failed, aborting", zap.String("step", step.Name), zap.Error(res.err))
		runErr = res.err
		rep.fail(step.Name, res.err)
	}
	return rep, runErr
}

type stepOutcome struct {
	StepResult
	err error
}

func (r *Runner) runStep(ctx context.Context, step Step) stepOutcome {
	ctx, span := telemetry.Start(ctx, "step."+step.Name,
		attribute.String("step", step.Name),
		attribute.String("policy", step.Policy.String()))
	defer span.End()

	logger := otelzap.Ctx(ctx)
	logger.Info("Step started", zap.String("step", step.Name), zap.String("policy", step.Policy.String()))
	r.observer.StepStarted(step.Name)

	start := r.now()
	err := step.Run(ctx)
	out := stepOutcome{
		StepResult: StepResult{Name: step.Name, Policy: step.Policy, Status: StatusOK, Duration: r.now().Sub(start)},
		err:        err,
	}
	if err != nil {
		span.RecordError(err)
		out.Error = err.Error()
		out.Status = StatusFailed
		if step.Policy == Tolerant {
			out.Status = StatusWarning
		}
		return out
	}
	logger.Info("Step completed", zap.String("step", step.Name), zap.Duration("duration", out.Duration))
	return out
}

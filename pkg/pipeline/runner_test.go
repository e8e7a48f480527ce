package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
)

type mockObserver struct{ mock.Mock }

func (m *mockObserver) StepStarted(name string)     { m.Called(name) }
func (m *mockObserver) StepFinished(res StepResult) { m.Called(res.Name, res.Status) }
func (m *mockObserver) Warned(step string, err error) {
	m.Called(step, err.Error())
}

func ok(calls *[]string, name string) func(context.Context) error {
	return func(context.Context) error {
		*calls = append(*calls, name)
		return nil
	}
}

func failing(calls *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestRunAllSucceed(t *testing.T) {
	var calls []string
	r := NewRunner("abc", nil)
	rep, err := r.Run(context.Background(), []Step{
		{Name: "one", Run: ok(&calls, "one")},
		{Name: "two", Run: ok(&calls, "two")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, calls)
	assert.True(t, rep.Succeeded)
	assert.Equal(t, "abc", rep.RunID)
	assert.Len(t, rep.Steps, 2)
	assert.Nil(t, rep.WarningErrors())
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestFatalFailureSkipsLaterSteps(t *testing.T) {
	var calls []string
	boom := hermes_err.New(hermes_err.UnreachableHost, "connect", "probe failed", errors.New("timeout"))
	rep, err := NewRunner("run", nil).Run(context.Background(), []Step{
		{Name: "validate", Run: ok(&calls, "validate")},
		{Name: "connect", Run: failing(&calls, "connect", boom)},
		{Name: "provision", Run: ok(&calls, "provision")},
		{Name: "transfer", Run: ok(&calls, "transfer")},
	})
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.UnreachableHost))
	assert.Equal(t, []string{"validate", "connect"}, calls)

	assert.False(t, rep.Succeeded)
	assert.Equal(t, "connect", rep.FailedStep)
	assert.Equal(t, "UnreachableHost", rep.ErrorKind)
	assert.False(t, rep.Ran("provision"))
	assert.False(t, rep.Ran("transfer"))
	s, found := rep.Step("provision")
	require.True(t, found)
	assert.Equal(t, StatusSkipped, s.Status)
}

func TestTolerantFailureContinues(t *testing.T) {
	var calls []string
	rep, err := NewRunner("run", nil).Run(context.Background(), []Step{
		{Name: "probe", Policy: Tolerant, Run: failing(&calls, "probe", errors.New("connection refused"))},
		{Name: "after", Run: ok(&calls, "after")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"probe", "after"}, calls)
	assert.True(t, rep.Succeeded)
	assert.Equal(t, []string{"probe: connection refused"}, rep.Warnings)

	s, _ := rep.Step("probe")
	assert.Equal(t, StatusWarning, s.Status)

	var w *StepWarning
	require.ErrorAs(t, rep.WarningErrors(), &w)
	assert.Equal(t, "probe", w.Step)
}

func TestWarnFromInsideStep(t *testing.T) {
	obs := &mockObserver{}
	obs.On("StepStarted", "fetch").Once()
	obs.On("Warned", "fetch", "pull failed").Once()
	obs.On("StepFinished", "fetch", StatusOK).Once()

	r := NewRunner("run", obs)
	rep, err := r.Run(context.Background(), []Step{{
		Name: "fetch",
		Run: func(ctx context.Context) error {
			r.Warn(ctx, "fetch", errors.New("pull failed"))
			r.Warn(ctx, "fetch", nil)
			return nil
		},
	}})
	require.NoError(t, err)
	assert.Len(t, rep.Warnings, 1)
	obs.AssertExpectations(t)
}

func TestCancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	rep, err := NewRunner("run", nil).Run(ctx, []Step{
		{Name: "first", Run: func(context.Context) error {
			calls = append(calls, "first")
			cancel()
			return nil
		}},
		{Name: "second", Run: ok(&calls, "second")},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 130, hermes_err.GetExitCode(err))
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, "second", rep.FailedStep)
}

func TestPolicyText(t *testing.T) {
	b, err := Tolerant.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "tolerant", string(b))
	assert.Equal(t, "fatal", Fatal.String())
}

// pkg/remote/runner.go

package remote

import (
	"context"
	"fmt"
)

// Runner executes scripts on the target host.
type Runner interface {
	Run(ctx context.Context, s *Script) (*Result, error)
}

// Result is the outcome of one script.
type Result struct {
	Output   string
	ExitCode int
}

// ExitError reports a script that ran but exited non-zero.
type ExitError struct {
	Script   string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote script %q exited with status %d", e.Script, e.ExitCode)
}

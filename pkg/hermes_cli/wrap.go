// pkg/hermes_cli/wrap.go

package hermes_cli

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_io"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/logger"
)

// RunFunc is the signature of every hermes command body.
type RunFunc func(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error

// Wrap ensures panic recovery, telemetry, and logging around fn.
func Wrap(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.GetLogger()

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		rc := hermes_io.NewContext(parent, cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		hermes_io.LogRuntimeExecutionContext(rc)

		err = fn(rc, cmd, args)
		if err != nil && !hermes_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}

/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/cmd/deploy"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_cli"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_io"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/logger"
)

// RootCmd is the base command for hermes.
var RootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Deploy containerized applications from git to a remote host",
	Long: `Hermes deploys a containerized application from a git repository to a single
remote host over SSH and fronts it with an nginx reverse proxy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: hermes_cli.Wrap(func(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

func init() {
	RootCmd.AddCommand(deploy.DeployCmd, VersionCmd)
}

// ExecuteContext runs the CLI with args and returns the process exit code.
func ExecuteContext(ctx context.Context, args []string) int {
	log := logger.GetLogger()
	RootCmd.SetArgs(args)

	err := RootCmd.ExecuteContext(ctx)
	code := hermes_err.GetExitCode(err)
	switch {
	case err == nil:
	case hermes_err.IsExpectedUserError(err):
		log.Warn("CLI completed with user error", zap.Error(err), zap.Int("exit_code", code))
	default:
		log.Error("CLI execution error", zap.Error(err), zap.Int("exit_code", code))
	}
	if err != nil && !hermes_cli.IsReported(err) {
		fmt.Fprintln(RootCmd.ErrOrStderr(), "Error:", err)
	}
	return code
}

// Execute runs the CLI with os.Args and returns the exit code.
// SIGINT and SIGTERM cancel the running step.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	code := ExecuteContext(ctx, os.Args[1:])

	if err := logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to flush logs: %v\n", err)
	}
	return code
}

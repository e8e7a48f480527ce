// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"mvdan.cc/sh/v3/syntax"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// Options describes a local command. There is no shell mode: Command is
// executed directly with Args, once.
type Options struct {
	Command string
	Args    []string
	// Timeout bounds the command in addition to ctx. Zero leaves only ctx.
	Timeout time.Duration
	Logger  *zap.Logger
	// Stream receives output as it is produced, in addition to the captured copy.
	Stream io.Writer
}

// Run executes opts and returns the combined stdout and stderr.
func Run(ctx context.Context, opts Options) (string, error) {
	cmdStr := CommandString(opts.Command, opts.Args...)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctx, span := telemetry.Start(ctx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.Int("args", len(opts.Args)),
	)
	defer span.End()

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	var buf bytes.Buffer
	var w io.Writer = &buf
	if opts.Stream != nil {
		w = io.MultiWriter(opts.Stream, &buf)
	}
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	output := buf.String()
	if err != nil {
		span.RecordError(err)
		logger.Warn("Execution failed",
			zap.String("command", cmdStr),
			zap.String("summary", hermes_err.ExtractSummary(output, 2)),
			zap.Error(err))
		if ctx.Err() != nil {
			err = cerr.WithSecondaryError(ctx.Err(), err)
		}
		return output, cerr.Wrapf(err, "%s failed", opts.Command)
	}
	logger.Debug("Execution succeeded", zap.String("command", cmdStr))
	return output, nil
}

// CommandString renders a command line for logs, quoting arguments that need it.
func CommandString(command string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = a
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

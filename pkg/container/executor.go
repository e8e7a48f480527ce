// pkg/container/executor.go

package container

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/source"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// Spec is everything the executor needs to (re)deploy one instance.
type Spec struct {
	Name       string
	LocalDir   string
	RemoteDir  string
	AppPort    int
	Descriptor source.BuildDescriptor
	Grace      time.Duration
}

// DeployedInstance is the running application on the target. There is at most
// one per Name: a deploy always removes the previous instance first.
type DeployedInstance struct {
	Name       string      `json:"name" yaml:"name"`
	RemoteDir  string      `json:"remote_dir" yaml:"remote_dir"`
	Port       int         `json:"port" yaml:"port"`
	Mode       source.Mode `json:"mode" yaml:"mode"`
	Running    bool        `json:"running" yaml:"running"`
	Containers []string    `json:"containers" yaml:"containers"`
}

// Syncer copies the working copy to the target.
type Syncer interface {
	Mirror(ctx context.Context, localDir, remoteDir string) error
}

// Executor places the project on the target and starts it.
type Executor struct {
	Runner remote.Runner
	Syncer Syncer
	// Sleep waits out the startup grace period. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Transfer creates the remote directory and mirrors the working copy into it.
func (e *Executor) Transfer(ctx context.Context, spec Spec) error {
	ctx, span := telemetry.Start(ctx, "container.Transfer", attribute.String("remote_dir", spec.RemoteDir))
	defer span.End()

	if res, err := e.Runner.Run(ctx, PrepareScript(spec.RemoteDir)); err != nil {
		return hermes_err.NewWithOutput(hermes_err.TransferFailed, "transfer",
			"cannot create remote directory "+spec.RemoteDir, output(res), err)
	}
	return e.Syncer.Mirror(ctx, spec.LocalDir, spec.RemoteDir)
}

// Start replaces the running instance and verifies it came up.
func (e *Executor) Start(ctx context.Context, spec Spec) (*DeployedInstance, error) {
	ctx, span := telemetry.Start(ctx, "container.Start",
		attribute.String("instance", spec.Name),
		attribute.String("mode", string(spec.Descriptor.Mode())))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	inst := &DeployedInstance{
		Name:      spec.Name,
		RemoteDir: spec.RemoteDir,
		Port:      spec.AppPort,
		Mode:      spec.Descriptor.Mode(),
	}

	// INTERVENE
	logger.Info("Starting container",
		zap.String("instance", spec.Name),
		zap.String("mode", string(inst.Mode)),
		zap.String("descriptor", spec.Descriptor.File()),
		zap.Int("port", spec.AppPort))
	if res, err := e.Runner.Run(ctx, StartScript(spec)); err != nil {
		return nil, hermes_err.NewWithOutput(hermes_err.ContainerStartFailed, "start-container",
			"failed to start "+spec.Name, output(res), err)
	}

	// EVALUATE
	logger.Info("Waiting for container startup", zap.Duration("grace", spec.Grace))
	if err := e.sleep(ctx, spec.Grace); err != nil {
		return nil, err
	}

	res, err := e.Runner.Run(ctx, ListScript())
	if err != nil {
		return nil, hermes_err.NewWithOutput(hermes_err.ContainerStartFailed, "start-container",
			"cannot list running containers", output(res), err)
	}
	inst.Containers = Matching(spec.Name, res.Output)
	inst.Running = len(inst.Containers) > 0
	if inst.Running {
		logger.Info("Container running", zap.Strings("containers", inst.Containers))
		return inst, nil
	}

	logs := ""
	if lres, lerr := e.Runner.Run(ctx, LogsScript(spec, shared.DefaultLogTailLines)); lerr != nil {
		logger.Warn("Could not fetch container logs", zap.Error(lerr))
		logs = output(lres)
	} else {
		logs = lres.Output
	}
	return nil, hermes_err.NewWithOutput(hermes_err.ContainerStartFailed, "start-container",
		spec.Name+" is not running after "+spec.Grace.String(), logs, nil,
		"Inspect the logs above; the container may exit on startup",
		"Check that the application listens on port 80 inside the container")
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func output(res *remote.Result) string {
	if res == nil {
		return ""
	}
	return res.Output
}

// Package deploy composes fetching, provisioning, transfer, container start,
// proxy configuration and validation into one ordered pipeline run.
package deploy

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/container"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/health"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/httpclient"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/nginx"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/pipeline"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/preflight"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/provision"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/source"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// Step names, in execution order.
const (
	StepPreflight       = "preflight"
	StepFetch           = "fetch-source"
	StepValidateProject = "validate-project"
	StepConnect         = "connect"
	StepProvision       = "provision"
	StepTransfer        = "transfer"
	StepStart           = "start-container"
	StepProxy           = "configure-proxy"
	StepValidate        = "validate-deployment"
	StepPublicProbe     = "public-probe"

	// StepProbeHost only runs for a connectivity check.
	StepProbeHost = "probe-host"
)

// Manager runs deployments of one configuration. The zero value is not
// usable; build it with NewManager and override collaborators in tests.
type Manager struct {
	Config   config.DeploymentConfig
	Fetcher  SourceFetcher
	Connect  Connector
	Syncer   container.Syncer
	Client   *http.Client
	Observer pipeline.Observer
	// Preflight runs on the invoking machine before anything else.
	Preflight []preflight.Check
	// Sleep replaces the startup grace wait.
	Sleep func(ctx context.Context, d time.Duration) error
	RunID string
}

// NewManager wires the production collaborators for cfg.
func NewManager(cfg config.DeploymentConfig, obs pipeline.Observer) *Manager {
	return &Manager{
		Config:    cfg,
		Fetcher:   &source.Fetcher{},
		Connect:   DialSSH,
		Syncer:    NewRsync(cfg),
		Client:    httpclient.New(shared.DefaultProbeTimeout),
		Observer:  obs,
		Preflight: preflight.LocalChecks(cfg),
		RunID:     uuid.NewString(),
	}
}

// run holds what earlier steps hand to later ones.
type run struct {
	m       *Manager
	cfg     config.DeploymentConfig
	runner  *pipeline.Runner
	session Session

	fetched   *source.Result
	desc      source.BuildDescriptor
	outcome   *provision.Outcome
	instance  *container.DeployedInstance
	probe     *health.ProbeResult
	hostState *provision.HostState
}

func (m *Manager) newRun() *run {
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	return &run{m: m, cfg: m.Config, runner: pipeline.NewRunner(m.RunID, m.Observer)}
}

// Deploy runs the full pipeline. The returned report is complete whether or
// not the run succeeded; the error is the fatal step's error.
func (m *Manager) Deploy(ctx context.Context) (*pipeline.Report, error) {
	ctx, span := telemetry.Start(ctx, "deploy.Deploy",
		attribute.String("run_id", m.RunID),
		attribute.String("instance", m.Config.InstanceName()))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	logger.Info("Starting deployment",
		append([]zap.Field{zap.String("run_id", m.RunID)}, m.Config.LogFields()...)...)

	r := m.newRun()
	defer r.close(ctx)

	rep, err := r.runner.Run(ctx, r.deploySteps())
	r.summarize(rep)
	if err != nil {
		span.RecordError(err)
		logger.Error("Deployment failed",
			zap.String("run_id", m.RunID),
			zap.String("step", rep.FailedStep),
			zap.Error(err))
		return rep, err
	}
	logger.Info("Deployment complete",
		zap.String("run_id", m.RunID),
		zap.String("url", rep.Summary["url"]),
		zap.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

// Check connects to the target and reports what is installed, changing nothing.
func (m *Manager) Check(ctx context.Context) (*pipeline.Report, error) {
	ctx, span := telemetry.Start(ctx, "deploy.Check", attribute.String("run_id", m.RunID))
	defer span.End()

	r := m.newRun()
	defer r.close(ctx)

	rep, err := r.runner.Run(ctx, []pipeline.Step{
		{Name: StepConnect, Policy: pipeline.Fatal, Run: r.connect},
		{Name: StepProbeHost, Policy: pipeline.Tolerant, Run: r.probeHost},
	})
	r.summarize(rep)
	return rep, err
}

func (r *run) deploySteps() []pipeline.Step {
	return []pipeline.Step{
		{Name: StepPreflight, Policy: pipeline.Fatal, Run: r.preflight},
		{Name: StepFetch, Policy: pipeline.Fatal, Run: r.fetch},
		{Name: StepValidateProject, Policy: pipeline.Fatal, Run: r.validateProject},
		{Name: StepConnect, Policy: pipeline.Fatal, Run: r.connect},
		{Name: StepProvision, Policy: pipeline.Fatal, Run: r.provision},
		{Name: StepTransfer, Policy: pipeline.Fatal, Run: r.transfer},
		{Name: StepStart, Policy: pipeline.Fatal, Run: r.start},
		{Name: StepProxy, Policy: pipeline.Fatal, Run: r.configureProxy},
		{Name: StepValidate, Policy: pipeline.Fatal, Run: r.validate},
		{Name: StepPublicProbe, Policy: pipeline.Tolerant, Run: r.probePublic},
	}
}

func (r *run) preflight(ctx context.Context) error {
	results, err := preflight.RunChecks(ctx, r.m.Preflight)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Warning != "" {
			r.runner.Warn(ctx, StepPreflight, cerr.Newf("%s: %s", res.Name, res.Warning))
		}
	}
	return nil
}

func (r *run) fetch(ctx context.Context) error {
	res, err := r.m.Fetcher.Fetch(ctx, SourceRequest(r.cfg))
	if err != nil {
		return err
	}
	r.fetched = res
	if res.Stale && res.UpdateErr != nil {
		r.runner.Warn(ctx, StepFetch, cerr.Wrap(res.UpdateErr, "update failed, deploying the existing working copy"))
	}
	return nil
}

func (r *run) validateProject(ctx context.Context) error {
	desc, err := source.Detect(r.fetched.WorkDir)
	if err != nil {
		return err
	}
	r.desc = desc
	otelzap.Ctx(ctx).Info("Build descriptor found",
		zap.String("mode", string(desc.Mode())),
		zap.String("file", desc.File()))

	if desc.Mode() != source.ModeCompose {
		return nil
	}
	info, err := source.InspectCompose(filepath.Join(r.fetched.WorkDir, desc.ComposeFile))
	if err != nil {
		r.runner.Warn(ctx, StepValidateProject, cerr.Wrap(err, "cannot inspect compose file"))
		return nil
	}
	if !info.Publishes(r.cfg.AppPort) {
		r.runner.Warn(ctx, StepValidateProject, cerr.Newf(
			"%s does not publish host port %d, which the proxy forwards to", desc.ComposeFile, r.cfg.AppPort))
	}
	return nil
}

func (r *run) connect(ctx context.Context) error {
	s, err := r.m.Connect(ctx, RemoteOptions(r.cfg))
	if err != nil {
		return err
	}
	r.session = s
	return nil
}

func (r *run) provision(ctx context.Context) error {
	out, err := (&provision.Provisioner{Runner: r.session}).Provision(ctx, r.cfg.SSHUser)
	if err != nil {
		return err
	}
	r.outcome = out
	for _, note := range out.Notes {
		r.runner.Warn(ctx, StepProvision, cerr.New(note))
	}
	return nil
}

func (r *run) executor() *container.Executor {
	return &container.Executor{Runner: r.session, Syncer: r.m.Syncer, Sleep: r.m.Sleep}
}

func (r *run) spec() container.Spec {
	return ContainerSpec(r.cfg, r.fetched.WorkDir, r.desc)
}

func (r *run) transfer(ctx context.Context) error {
	return r.executor().Transfer(ctx, r.spec())
}

func (r *run) start(ctx context.Context) error {
	inst, err := r.executor().Start(ctx, r.spec())
	if err != nil {
		return err
	}
	r.instance = inst
	return nil
}

func (r *run) configureProxy(ctx context.Context) error {
	return (&nginx.Configurator{Runner: r.session}).Configure(ctx, ProxySite(r.cfg))
}

func (r *run) validator() *health.Validator {
	return &health.Validator{Runner: r.session, Client: r.m.Client}
}

func (r *run) validate(ctx context.Context) error {
	return r.validator().CheckRemote(ctx, HealthTarget(r.cfg))
}

func (r *run) probePublic(ctx context.Context) error {
	res, err := r.validator().ProbePublic(ctx, HealthTarget(r.cfg))
	r.probe = res
	return err
}

func (r *run) probeHost(ctx context.Context) error {
	st, err := provision.Probe(ctx, r.session)
	if err != nil {
		return err
	}
	r.hostState = &st
	return nil
}

func (r *run) close(ctx context.Context) {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		otelzap.Ctx(ctx).Warn("Closing ssh connection failed", zap.Error(err))
	}
}

func (r *run) summarize(rep *pipeline.Report) {
	s := rep.Summary
	s["target"] = r.cfg.Target()
	if r.fetched != nil {
		s["branch"] = r.cfg.Branch
		if r.fetched.Commit != "" {
			s["commit"] = shortCommit(r.fetched.Commit)
		}
	}
	if r.instance != nil {
		s["instance"] = r.instance.Name
		s["mode"] = string(r.instance.Mode)
		s["app_port"] = strconv.Itoa(r.instance.Port)
		s["remote_dir"] = r.instance.RemoteDir
	}
	if rep.Succeeded && rep.Ran(StepValidate) {
		s["url"] = health.PublicURL(r.cfg.ServerAddress)
	}
	if r.outcome != nil {
		for k, v := range map[string]string{
			"docker_version":  r.outcome.Versions.Docker,
			"compose_version": r.outcome.Versions.Compose,
			"nginx_version":   r.outcome.Versions.Nginx,
		} {
			if v != "" {
				s[k] = v
			}
		}
	}
	if r.probe != nil && r.probe.StatusCode != 0 {
		s["public_status"] = strconv.Itoa(r.probe.StatusCode)
	}
	if r.hostState != nil {
		s["docker"] = yesNo(r.hostState.Docker)
		s["docker_compose"] = yesNo(r.hostState.Compose)
		s["nginx"] = yesNo(r.hostState.Nginx)
		s["rsync"] = yesNo(r.hostState.Rsync)
	}
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

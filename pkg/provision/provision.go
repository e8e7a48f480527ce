// pkg/provision/provision.go

package provision

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// Script installs docker, docker-compose and nginx where missing and makes
// sure both services are enabled and running. Every command is safe to repeat.
func Script(sshUser string) *remote.Script {
	composeURL := shared.ComposeReleaseBaseURL + "/docker-compose-$(uname -s)-$(uname -m)"
	return remote.NewScript("provision", true).
		Cmd("sudo", "apt-get", "update", "-y").
		Raw("if ! command -v docker >/dev/null 2>&1; then").
		Raw("  curl -fsSL " + remote.Quote(shared.DockerInstallScriptURL) + " | sudo sh").
		Raw("  " + remote.Quote("sudo", "usermod", "-aG", "docker", sshUser)).
		Raw("fi").
		Raw("if ! command -v docker-compose >/dev/null 2>&1; then").
		Raw(`  sudo curl -fsSL "` + composeURL + `" -o ` + remote.Quote(shared.ComposeBinaryPath)).
		Raw("  " + remote.Quote("sudo", "chmod", "+x", shared.ComposeBinaryPath)).
		Raw("fi").
		Raw("if ! command -v nginx >/dev/null 2>&1; then").
		Raw("  " + remote.Quote("sudo", "apt-get", "install", "-y", "nginx")).
		Raw("fi").
		Raw("if ! command -v rsync >/dev/null 2>&1; then").
		Raw("  " + remote.Quote("sudo", "apt-get", "install", "-y", "rsync")).
		Raw("fi").
		Cmd("sudo", "systemctl", "enable", "--now", "docker").
		Cmd("sudo", "systemctl", "enable", "--now", "nginx").
		Cmd("docker", "--version").
		Cmd("docker-compose", "--version").
		Raw("nginx -v 2>&1")
}

// Outcome summarizes a provisioning run.
type Outcome struct {
	Before   HostState `json:"before" yaml:"before"`
	Versions Versions  `json:"versions" yaml:"versions"`
	Notes    []string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Provisioner makes the target ready to build and run containers behind nginx.
type Provisioner struct {
	Runner remote.Runner
}

// Provision probes the host, runs Script and checks the reported versions.
// Only a failure of Script itself is fatal (ProvisioningFailed).
func (p *Provisioner) Provision(ctx context.Context, sshUser string) (*Outcome, error) {
	logger := otelzap.Ctx(ctx)
	out := &Outcome{}

	// ASSESS
	state, err := Probe(ctx, p.Runner)
	if err != nil {
		logger.Warn("Host probe failed, provisioning anyway", zap.Error(err))
	} else {
		out.Before = state
		logger.Info("Host state",
			zap.Bool("docker", state.Docker),
			zap.Bool("docker_compose", state.Compose),
			zap.Bool("nginx", state.Nginx),
			zap.Bool("rsync", state.Rsync))
	}

	// INTERVENE
	logger.Info("Provisioning target host", zap.Bool("already_ready", state.Ready()))
	res, err := p.Runner.Run(ctx, Script(sshUser))
	if err != nil {
		output := ""
		if res != nil {
			output = res.Output
		}
		return nil, hermes_err.NewWithOutput(hermes_err.ProvisioningFailed, "provision",
			"provisioning script failed", output, err,
			"Check that "+sshUser+" can run sudo without a password",
			"Check that the target can reach the package mirrors and download.docker.com")
	}

	// EVALUATE
	out.Versions = ParseVersions(res.Output)
	out.Notes = out.Versions.Check()
	logger.Info("Provisioning complete",
		zap.String("docker", out.Versions.Docker),
		zap.String("docker_compose", out.Versions.Compose),
		zap.String("nginx", out.Versions.Nginx))
	for _, n := range out.Notes {
		logger.Warn("Version check", zap.String("note", n))
	}
	return out, nil
}

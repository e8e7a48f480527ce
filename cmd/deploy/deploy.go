// cmd/deploy/deploy.go

package deploy

import (
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/deploy"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_cli"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_io"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/output"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/pipeline"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/transfer"
)

// DeployCmd deploys a repository to a remote host.
var DeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a git repository as a container behind nginx on a remote host",
	Long: `Deploy clones or updates the repository, connects to the target over SSH,
installs Docker, docker-compose and nginx when missing, mirrors the working copy
with rsync, (re)starts the application container and routes port 80 to it.

Values come from flags, HERMES_* environment variables, a .env file, an optional
YAML config file and, on a terminal, prompts for anything still missing.

Examples:
  # Deploy the main branch of a Dockerfile project
  hermes deploy --repo https://github.com/acme/shop.git --token $TOKEN \
    --user ubuntu --server 203.0.113.10 --key ~/.ssh/id_ed25519

  # Deploy a compose project on port 3000 and print the report as JSON
  hermes deploy --config shop.yaml --port 3000 -o json --no-prompt`,
	Args: cobra.NoArgs,
	RunE: hermes_cli.Wrap(runDeploy),
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect to the target host and report what is installed",
	Long: `Check verifies the SSH connection (key, host key and a probe command) and
reports whether docker, docker-compose, nginx and rsync are installed. Nothing on
the host is changed.`,
	Args: cobra.NoArgs,
	RunE: hermes_cli.Wrap(runCheck),
}

var renderProxyCmd = &cobra.Command{
	Use:   "render-proxy",
	Short: "Print the nginx site file a deployment would install",
	Args:  cobra.NoArgs,
	RunE:  hermes_cli.Wrap(runRenderProxy),
}

func init() {
	addDeploymentFlags(DeployCmd.PersistentFlags())
	DeployCmd.AddCommand(checkCmd, renderProxyCmd)
}

func runDeploy(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	return runPipeline(rc, cmd, func(m *deploy.Manager) (*pipeline.Report, error) {
		return m.Deploy(rc.Ctx)
	})
}

func runCheck(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	return runPipeline(rc, cmd, func(m *deploy.Manager) (*pipeline.Report, error) {
		return m.Check(rc.Ctx)
	})
}

// newManager is replaced in tests.
var newManager = deploy.NewManager

func runPipeline(rc *hermes_io.RuntimeContext, cmd *cobra.Command, run func(*deploy.Manager) (*pipeline.Report, error)) error {
	logger := otelzap.Ctx(rc.Ctx)
	out := cmd.OutOrStdout()

	format, ferr := output.ParseFormat(flagString(cmd, "output"))
	cfg, err := loadConfig(rc, cmd)
	if err == nil && ferr != nil {
		err = hermes_err.NewConfigError(ferr.Error(), nil)
	}
	if err != nil {
		return render(rc, out, format, pipeline.FailedReport(uuid.NewString(), "config", err), err)
	}

	// Machine-readable reports own stdout; progress goes to stderr.
	progress := out
	if format != output.FormatText {
		progress = cmd.ErrOrStderr()
	}
	console := output.NewConsole(progress)

	m := newManager(cfg, console)
	if rs, ok := m.Syncer.(*transfer.Rsync); ok {
		rs.Progress = progress
	}
	console.Infof("Deploying %s (%s) to %s, run %s", cfg.InstanceName(), cfg.Branch, cfg.Target(), m.RunID)
	logger.Info("Pipeline starting", zap.String("run_id", m.RunID), zap.String("command", cmd.Name()))

	rep, err := run(m)
	return render(rc, out, format, rep, err)
}

func render(rc *hermes_io.RuntimeContext, w io.Writer, format output.Format, rep *pipeline.Report, err error) error {
	if format == "" {
		format = output.FormatText
	}
	if rerr := output.Render(w, format, rep); rerr != nil {
		otelzap.Ctx(rc.Ctx).Warn("Failed to render report", zap.Error(rerr))
		return err
	}
	return hermes_cli.Reported(err)
}

func runRenderProxy(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	configFile, _ := flags.GetString("config")
	v, err := config.NewViper(flags, configFile)
	if err != nil {
		return err
	}

	site := deploy.ProxySite(config.DeploymentConfig{
		RepoURL:       v.GetString("repo"),
		ServerAddress: v.GetString("server"),
		AppPort:       v.GetInt("port"),
	})
	body, err := site.Render()
	if err != nil {
		return hermes_err.NewConfigError("cannot render proxy site", err)
	}
	otelzap.Ctx(rc.Ctx).Info("Rendered proxy site",
		zap.String("site", site.SiteName),
		zap.String("path", site.AvailablePath()))
	_, err = io.WriteString(cmd.OutOrStdout(), body)
	return err
}

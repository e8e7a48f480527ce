// cmd/deploy/flags.go

package deploy

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_io"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/interaction"
)

// addDeploymentFlags registers every configuration flag. Zero defaults defer
// to the defaults applied by config.NewViper.
func addDeploymentFlags(fs *pflag.FlagSet) {
	fs.String("repo", "", "Git repository URL (HTTPS)")
	fs.String("token", "", "Access token used to clone the repository")
	fs.String("branch", "", "Branch to deploy (default main)")
	fs.String("user", "", "SSH user on the target host")
	fs.String("server", "", "Target host name or IP address")
	fs.String("key", "", "Path to the SSH private key")
	fs.Int("port", 0, "Host port the application listens on (default 8080)")
	fs.Int("ssh-port", 0, "SSH port of the target host (default 22)")
	fs.String("workspace", "", "Directory holding local working copies (default .)")
	fs.String("remote-dir", "", "Remote directory, relative to the login home (default: instance name)")
	fs.Bool("prune", false, "Delete remote files that no longer exist locally")
	fs.Duration("grace", 0, "Time to wait before checking the container runs (default 5s)")
	fs.Duration("connect-timeout", 0, "SSH connect and probe timeout (default 10s)")
	fs.String("known-hosts", "", "known_hosts file for trust-on-first-use host keys")

	fs.String("config", "", "YAML config file")
	fs.String("env-file", ".env", "dotenv file loaded before HERMES_* variables are read")
	fs.StringP("output", "o", "text", "Report format: text, json or yaml")
	fs.Bool("no-prompt", false, "Never prompt for missing values")
}

var promptFields = []interaction.Field{
	{Key: "repo", Label: "Repository URL", Validate: interaction.ValidateURL},
	{Key: "token", Label: "Access token", Secret: true, Validate: interaction.ValidateNonEmpty},
	{Key: "server", Label: "Target host", Validate: interaction.ValidateNoShellMeta},
	{Key: "user", Label: "SSH user", Validate: interaction.ValidateNoShellMeta},
	{Key: "key", Label: "SSH private key path", Validate: interaction.ValidateFile},
}

// newPrompter is replaced in tests.
var newPrompter = interaction.NewTerminalPrompter

// loadConfig merges .env, HERMES_* variables, the config file, flags and, on a
// terminal, answers to prompts into a validated DeploymentConfig.
func loadConfig(rc *hermes_io.RuntimeContext, cmd *cobra.Command) (config.DeploymentConfig, error) {
	logger := otelzap.Ctx(rc.Ctx)
	flags := cmd.Flags()

	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.DeploymentConfig{}, err
	}
	configFile, _ := flags.GetString("config")
	v, err := config.NewViper(flags, configFile)
	if err != nil {
		return config.DeploymentConfig{}, err
	}

	if noPrompt, _ := flags.GetBool("no-prompt"); !noPrompt {
		if err := newPrompter().FillMissing(rc.Ctx, v, promptFields); err != nil {
			return config.DeploymentConfig{}, hermes_err.NewConfigError("interactive input failed", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return config.DeploymentConfig{}, err
	}
	logger.Info("Deployment configuration loaded", cfg.LogFields()...)
	return cfg, nil
}

func flagString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}

// pkg/config/deployment.go
//
// DeploymentConfig is the validated contract between the operator-facing
// collector (flags, env, config file, prompts) and the deployment pipeline.

package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/xdg"
)

// DeploymentConfig is passed by value; nothing mutates it after New returns.
type DeploymentConfig struct {
	RepoURL        string        `mapstructure:"repo" yaml:"repo" validate:"required,url"`
	Token          string        `mapstructure:"token" yaml:"-" validate:"required"`
	Branch         string        `mapstructure:"branch" yaml:"branch" validate:"required"`
	SSHUser        string        `mapstructure:"user" yaml:"user" validate:"required"`
	ServerAddress  string        `mapstructure:"server" yaml:"server" validate:"required,hostname_rfc1123|ip"`
	SSHKeyPath     string        `mapstructure:"key" yaml:"key" validate:"required,file"`
	AppPort        int           `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	SSHPort        int           `mapstructure:"ssh-port" yaml:"ssh_port" validate:"required,min=1,max=65535"`
	Workspace      string        `mapstructure:"workspace" yaml:"workspace" validate:"required"`
	RemoteDir      string        `mapstructure:"remote-dir" yaml:"remote_dir" validate:"required"`
	Prune          bool          `mapstructure:"prune" yaml:"prune"`
	StartupGrace   time.Duration `mapstructure:"grace" yaml:"grace" validate:"min=0"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout" yaml:"connect_timeout" validate:"required"`
	KnownHostsPath string        `mapstructure:"known-hosts" yaml:"known_hosts" validate:"required"`
}

var instanceNameInvalid = regexp.MustCompile(`[^a-z0-9_.-]+`)

// New applies defaults and enforces the invariants of a DeploymentConfig.
func New(in DeploymentConfig) (DeploymentConfig, error) {
	cfg := in
	cfg.RepoURL = strings.TrimSpace(cfg.RepoURL)
	cfg.Branch = strings.TrimSpace(cfg.Branch)
	cfg.SSHUser = strings.TrimSpace(cfg.SSHUser)
	cfg.ServerAddress = strings.TrimSpace(cfg.ServerAddress)
	cfg.SSHKeyPath = expandHome(strings.TrimSpace(cfg.SSHKeyPath))

	if cfg.Branch == "" {
		cfg.Branch = shared.DefaultBranch
	}
	if cfg.AppPort == 0 {
		cfg.AppPort = shared.DefaultAppPort
	}
	if cfg.SSHPort == 0 {
		cfg.SSHPort = shared.DefaultSSHPort
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = shared.DefaultConnectTimeout
	}
	// Zero means unset; pass a small positive value to shorten the wait.
	if cfg.StartupGrace == 0 {
		cfg.StartupGrace = shared.DefaultStartupGrace
	}
	if cfg.KnownHostsPath == "" {
		cfg.KnownHostsPath = xdg.XDGStatePath(shared.HermesID, "known_hosts")
	}
	cfg.RemoteDir = homeRelative(strings.TrimSpace(cfg.RemoteDir))
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = cfg.InstanceName()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return DeploymentConfig{}, hermes_err.NewConfigError(describeValidation(err), nil)
	}
	if cfg.InstanceName() == "" {
		return DeploymentConfig{}, hermes_err.NewConfigError(
			fmt.Sprintf("cannot derive an instance name from repository URL %q", cfg.RepoURL), nil)
	}
	if strings.HasPrefix(cfg.RemoteDir, "~") {
		return DeploymentConfig{}, hermes_err.NewConfigError(
			fmt.Sprintf("remote directory %q must be absolute or relative to the login home", cfg.RemoteDir), nil)
	}
	if err := checkReadable(cfg.SSHKeyPath); err != nil {
		return DeploymentConfig{}, hermes_err.NewConfigError("ssh key is not readable", err)
	}
	return cfg, nil
}

// RepoName is the last path element of the repository URL without ".git".
func (c DeploymentConfig) RepoName() string {
	raw := strings.TrimRight(c.RepoURL, "/")
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	name := path.Base(raw)
	name = strings.TrimSuffix(name, ".git")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// InstanceName names the container, image, compose project and proxy site.
func (c DeploymentConfig) InstanceName() string {
	name := instanceNameInvalid.ReplaceAllString(strings.ToLower(c.RepoName()), "-")
	return strings.Trim(name, "-.")
}

// WorkDir is the local working copy location.
func (c DeploymentConfig) WorkDir() string {
	return filepath.Join(c.Workspace, c.RepoName())
}

// Address is the host:port dialed for SSH.
func (c DeploymentConfig) Address() string {
	return net.JoinHostPort(c.ServerAddress, strconv.Itoa(c.SSHPort))
}

// Target is the user@host form used by ssh and rsync.
func (c DeploymentConfig) Target() string {
	return c.SSHUser + "@" + c.ServerAddress
}

// LogFields describes the configuration without secrets.
func (c DeploymentConfig) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("repo", c.RepoURL),
		zap.String("branch", c.Branch),
		zap.String("target", c.Target()),
		zap.Int("ssh_port", c.SSHPort),
		zap.Int("app_port", c.AppPort),
		zap.String("instance", c.InstanceName()),
		zap.String("work_dir", c.WorkDir()),
		zap.String("remote_dir", c.RemoteDir),
		zap.Bool("token_set", c.Token != ""),
	}
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "file":
			msgs = append(msgs, fmt.Sprintf("%s must reference an existing file", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func checkReadable(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	return f.Close()
}

// homeRelative drops a leading "~/" from a remote path. Remote commands quote
// their arguments, so the remote shell never expands it; a relative path already
// resolves against the login home for both ssh and rsync.
func homeRelative(p string) string {
	if p == "~" {
		return ""
	}
	return strings.TrimPrefix(p, "~/")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

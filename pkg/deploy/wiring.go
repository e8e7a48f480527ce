// pkg/deploy/wiring.go
//
// Translations from a DeploymentConfig into the option types of the
// packages the pipeline drives.

package deploy

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/container"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/health"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/nginx"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/source"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/transfer"
)

// SourceFetcher produces the local working copy.
type SourceFetcher interface {
	Fetch(ctx context.Context, req source.Request) (*source.Result, error)
}

// Session is an open connection to the target.
type Session interface {
	remote.Runner
	Close() error
}

// Connector opens a Session.
type Connector func(ctx context.Context, opts remote.Options) (Session, error)

// DialSSH is the production Connector.
func DialSSH(ctx context.Context, opts remote.Options) (Session, error) {
	c, err := remote.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func SourceRequest(cfg config.DeploymentConfig) source.Request {
	return source.Request{
		RepoURL: cfg.RepoURL,
		Token:   cfg.Token,
		Branch:  cfg.Branch,
		WorkDir: cfg.WorkDir(),
	}
}

func RemoteOptions(cfg config.DeploymentConfig) remote.Options {
	return remote.Options{
		User:           cfg.SSHUser,
		Address:        cfg.Address(),
		KeyPath:        cfg.SSHKeyPath,
		KnownHostsPath: cfg.KnownHostsPath,
		Timeout:        cfg.ConnectTimeout,
	}
}

// NewRsync mirrors over the same key, port and known_hosts file as the connector.
func NewRsync(cfg config.DeploymentConfig) *transfer.Rsync {
	return &transfer.Rsync{
		User:           cfg.SSHUser,
		Host:           cfg.ServerAddress,
		Port:           cfg.SSHPort,
		KeyPath:        cfg.SSHKeyPath,
		KnownHostsPath: cfg.KnownHostsPath,
		ConnectTimeout: cfg.ConnectTimeout,
		Prune:          cfg.Prune,
		Timeout:        shared.DefaultTransferTimeout,
	}
}

func ContainerSpec(cfg config.DeploymentConfig, workDir string, desc source.BuildDescriptor) container.Spec {
	return container.Spec{
		Name:       cfg.InstanceName(),
		LocalDir:   workDir,
		RemoteDir:  cfg.RemoteDir,
		AppPort:    cfg.AppPort,
		Descriptor: desc,
		Grace:      cfg.StartupGrace,
	}
}

// ProxySite routes the server address to the application port.
func ProxySite(cfg config.DeploymentConfig) nginx.ProxySiteConfig {
	return nginx.ProxySiteConfig{
		SiteName:      cfg.InstanceName(),
		ServerAddress: cfg.ServerAddress,
		UpstreamPort:  cfg.AppPort,
	}
}

func HealthTarget(cfg config.DeploymentConfig) health.Target {
	return health.Target{
		Instance:      cfg.InstanceName(),
		AppPort:       cfg.AppPort,
		ServerAddress: cfg.ServerAddress,
	}
}

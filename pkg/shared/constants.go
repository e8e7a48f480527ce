// pkg/shared/constants.go

package shared

import "time"

const (
	HermesID = "hermes"

	HermesLogDir  = "/var/log/hermes/"
	HermesLogs    = HermesLogDir + "hermes.log"
	HermesLogsPWD = "./hermes.log"
)

const (
	// Permission modes (in octal)
	DirPermStandard        = 0755
	FilePermOwnerRWX       = 0700
	FilePermStandard       = 0644
	FilePermOwnerReadWrite = 0600
	SecretFilePerm         = 0600
)

// Deployment defaults applied when the operator leaves a value empty.
const (
	DefaultBranch          = "main"
	DefaultAppPort         = 8080
	DefaultSSHPort         = 22
	DefaultContainerPort   = 80
	DefaultConnectTimeout  = 10 * time.Second
	DefaultStartupGrace    = 5 * time.Second
	DefaultProbeTimeout    = 10 * time.Second
	DefaultTransferTimeout = 30 * time.Minute
	DefaultLogTailLines    = 50
)

// Remote tool and path locations on the target host.
const (
	DockerInstallScriptURL = "https://get.docker.com"
	ComposeReleaseBaseURL  = "https://github.com/docker/compose/releases/latest/download"
	ComposeBinaryPath      = "/usr/local/bin/docker-compose"

	NginxSitesAvailable = "/etc/nginx/sites-available"
	NginxSitesEnabled   = "/etc/nginx/sites-enabled"
	NginxDefaultSite    = "default"
)

// ProbeToken is echoed by the remote host to prove a working session.
const ProbeToken = "hermes-ok"

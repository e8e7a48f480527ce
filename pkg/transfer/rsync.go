// pkg/transfer/rsync.go

package transfer

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
)

// Rsync mirrors a local directory to the target with the rsync binary over ssh.
type Rsync struct {
	Binary         string // defaults to "rsync"
	User           string
	Host           string
	Port           int
	KeyPath        string
	KnownHostsPath string
	ConnectTimeout time.Duration
	// Prune deletes remote files that no longer exist locally.
	Prune    bool
	Excludes []string
	// Timeout bounds one mirror run. Zero leaves only the caller's context.
	Timeout time.Duration
	// Progress receives rsync output while it runs and turns on --stats.
	Progress io.Writer
}

// DefaultExcludes never leave the local machine.
var DefaultExcludes = []string{".git"}

// Args builds the rsync argument list for mirroring localDir into remoteDir.
func (r *Rsync) Args(localDir, remoteDir string) []string {
	args := []string{"-az"}
	if r.Progress != nil {
		args = append(args, "--stats")
	}
	if r.Prune {
		args = append(args, "--delete")
	}
	for _, ex := range append(append([]string{}, DefaultExcludes...), r.Excludes...) {
		args = append(args, "--exclude", ex)
	}
	args = append(args, "-e", r.sshCommand())
	args = append(args,
		strings.TrimRight(localDir, "/")+"/",
		r.User+"@"+r.Host+":"+strings.TrimRight(remoteDir, "/")+"/")
	return args
}

// sshCommand is the remote shell rsync spawns. Host keys follow the same
// trust-on-first-use policy and file as the SSH connector.
func (r *Rsync) sshCommand() string {
	args := []string{"ssh",
		"-i", r.KeyPath,
		"-p", strconv.Itoa(r.Port),
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=" + r.KnownHostsPath,
	}
	if r.ConnectTimeout > 0 {
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(int(r.ConnectTimeout.Seconds())))
	}
	return remote.Quote(args...)
}

// Mirror copies localDir to remoteDir on the target. Any rsync failure is TransferFailed.
func (r *Rsync) Mirror(ctx context.Context, localDir, remoteDir string) error {
	logger := otelzap.Ctx(ctx)
	bin := r.Binary
	if bin == "" {
		bin = "rsync"
	}

	logger.Info("Transferring project files",
		zap.String("local_dir", localDir),
		zap.String("remote_dir", remoteDir),
		zap.Bool("prune", r.Prune))

	out, err := execute.Run(ctx, execute.Options{
		Command: bin,
		Args:    r.Args(localDir, remoteDir),
		Timeout: r.Timeout,
		Logger:  logger.ZapLogger(),
		Stream:  r.Progress,
	})
	if err != nil {
		return hermes_err.NewWithOutput(hermes_err.TransferFailed, "transfer",
			"rsync to "+r.Host+":"+remoteDir+" failed", out, err,
			"Check that rsync is installed locally and on the target")
	}
	logger.Info("Transfer complete", zap.String("remote_dir", remoteDir))
	return nil
}

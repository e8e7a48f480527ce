// Package preflight checks the invoking machine before anything touches the
// target: the local tools the transfer shells out to and the key it hands them.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/config"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// CheckTimeout bounds a single check.
const CheckTimeout = 10 * time.Second

// Check represents a single preflight check
type Check struct {
	Name        string
	Description string
	Check       func(context.Context) error
	Required    bool
}

// CheckResult contains the result of one check
type CheckResult struct {
	Name    string
	Passed  bool
	Error   error
	Warning string
}

// RunChecks executes every check. Optional failures only become warnings on
// their result; any required failure makes the run ConfigInvalid.
func RunChecks(ctx context.Context, checks []Check) ([]CheckResult, error) {
	logger := otelzap.Ctx(ctx)
	logger.Debug("Running preflight checks", zap.Int("total_checks", len(checks)))

	results := make([]CheckResult, 0, len(checks))
	var failed []string
	for _, check := range checks {
		result := CheckResult{Name: check.Name}

		checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
		err := check.Check(checkCtx)
		cancel()

		switch {
		case err == nil:
			result.Passed = true
			logger.Debug("Check passed", zap.String("check", check.Name))
		case check.Required:
			result.Error = err
			failed = append(failed, check.Name+": "+err.Error())
			logger.Error("Required check failed", zap.String("check", check.Name), zap.Error(err))
		default:
			result.Error = err
			result.Warning = err.Error()
			logger.Warn("Optional check failed", zap.String("check", check.Name), zap.Error(err))
		}
		results = append(results, result)
	}

	if len(failed) > 0 {
		return results, hermes_err.New(hermes_err.ConfigInvalid, "preflight",
			fmt.Sprintf("%d required check(s) failed: %s", len(failed), strings.Join(failed, "; ")), nil,
			"Install rsync and the OpenSSH client on this machine",
			"Restrict the key with: chmod 600 <key>")
	}
	return results, nil
}

// CheckBinary verifies name is on PATH. With versionArgs it also runs the
// binary once, so a broken install fails here rather than mid-transfer.
func CheckBinary(name string, versionArgs ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		path, err := exec.LookPath(name)
		if err != nil {
			return cerr.Newf("%s not found on PATH", name)
		}
		if len(versionArgs) == 0 {
			return nil
		}
		out, err := execute.Run(ctx, execute.Options{
			Command: path,
			Args:    versionArgs,
			Logger:  otelzap.Ctx(ctx).ZapLogger(),
		})
		if err != nil {
			return cerr.Wrapf(err, "%s does not run: %s", name, hermes_err.ExtractSummary(out, 1))
		}
		otelzap.Ctx(ctx).Debug("Local tool found",
			zap.String("tool", name),
			zap.String("version", hermes_err.ExtractSummary(out, 1)))
		return nil
	}
}

// CheckPrivateKeyMode rejects keys readable by group or others; the OpenSSH
// client refuses to use them.
func CheckPrivateKeyMode(path string) func(context.Context) error {
	return func(context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			return cerr.Newf("%s has mode %04o, want %04o", path, perm, shared.SecretFilePerm)
		}
		return nil
	}
}

// CheckWritableDir verifies the directory of path exists or can be created.
func CheckWritableDir(path string) func(context.Context) error {
	return func(context.Context) error {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, shared.FilePermOwnerRWX); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".hermes-preflight-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	}
}

// LocalChecks are the checks a deployment of cfg needs on the invoking machine.
func LocalChecks(cfg config.DeploymentConfig) []Check {
	return []Check{
		{
			Name:        "rsync",
			Description: "rsync is installed locally",
			Check:       CheckBinary("rsync", "--version"),
			Required:    true,
		},
		{
			Name:        "ssh",
			Description: "the OpenSSH client is installed locally",
			Check:       CheckBinary("ssh", "-V"),
			Required:    true,
		},
		{
			Name:        "ssh key mode",
			Description: "the private key is only readable by its owner",
			Check:       CheckPrivateKeyMode(cfg.SSHKeyPath),
			Required:    true,
		},
		{
			Name:        "known_hosts",
			Description: "the known_hosts directory is writable",
			Check:       CheckWritableDir(cfg.KnownHostsPath),
			Required:    false,
		},
	}
}

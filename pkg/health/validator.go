// pkg/health/validator.go

package health

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/httpclient"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// Target names what to check.
type Target struct {
	Instance      string
	AppPort       int
	ServerAddress string
}

// RemoteScript checks, on the target, that docker and nginx are active, the
// instance is running and both the application and the proxy answer HTTP.
// curl runs without -f: any HTTP response, including an error status, passes.
func RemoteScript(t Target) *remote.Script {
	ps := remote.Quote("sudo", "docker", "ps", "--format", "{{.Names}}")
	name := remote.Quote(t.Instance)
	return remote.NewScript("validate-deployment", true).
		Cmd("systemctl", "is-active", "--quiet", "docker").
		Raw(ps+" | grep -Eq '^'"+regexQuote(t.Instance)+"'([-_]|$)' || { echo "+name+" is not running >&2; exit 1; }").
		Cmd("systemctl", "is-active", "--quiet", "nginx").
		Cmd("curl", "-sS", "-o", "/dev/null", "http://127.0.0.1:"+strconv.Itoa(t.AppPort)).
		Cmd("curl", "-sS", "-o", "/dev/null", "http://127.0.0.1:80")
}

// regexQuote escapes an instance name for grep -E and quotes it for the shell.
func regexQuote(s string) string {
	escaped := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '[', ']', '(', ')', '*', '+', '?', '{', '}', '|', '^', '$', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, s[i])
	}
	return remote.Quote(string(escaped))
}

// ProbeResult is the outcome of the public reachability probe.
type ProbeResult struct {
	URL        string        `json:"url" yaml:"url"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// Validator verifies a finished deployment.
type Validator struct {
	Runner remote.Runner
	// Client issues the public probe. Defaults to a client with the probe timeout.
	Client *http.Client
}

// CheckRemote runs the on-host checks. Failure is ValidationFailed.
func (v *Validator) CheckRemote(ctx context.Context, t Target) error {
	logger := otelzap.Ctx(ctx)
	logger.Info("Validating deployment on target",
		zap.String("instance", t.Instance),
		zap.Int("app_port", t.AppPort))

	res, err := v.Runner.Run(ctx, RemoteScript(t))
	if err != nil {
		out := ""
		if res != nil {
			out = res.Output
		}
		return hermes_err.NewWithOutput(hermes_err.ValidationFailed, "validate-deployment",
			"deployment checks failed on the target", out, err,
			"Run 'sudo docker ps' and 'sudo systemctl status nginx' on the target")
	}
	logger.Info("Remote checks passed", zap.String("instance", t.Instance))
	return nil
}

// ProbePublic issues an HTTP GET to the server from this machine. The caller
// treats an error as a warning: firewalls commonly block the invoking machine.
func (v *Validator) ProbePublic(ctx context.Context, t Target) (*ProbeResult, error) {
	logger := otelzap.Ctx(ctx)
	client := v.Client
	if client == nil {
		client = httpclient.New(shared.DefaultProbeTimeout)
	}

	url := PublicURL(t.ServerAddress)
	out := &ProbeResult{URL: url}
	resp, err := httpclient.Get(ctx, client, url)
	if err != nil {
		return out, cerr.WithHint(err, "the application may still be reachable from other networks")
	}
	out.StatusCode = resp.StatusCode
	out.Elapsed = resp.Elapsed
	logger.Info("Public endpoint answered",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", resp.Elapsed))
	return out, nil
}

// PublicURL is the address users reach the application at.
func PublicURL(server string) string {
	if ip := net.ParseIP(server); ip != nil && ip.To4() == nil {
		return "http://[" + server + "]/"
	}
	return "http://" + server + "/"
}

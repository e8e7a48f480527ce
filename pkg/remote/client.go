// pkg/remote/client.go

package remote

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// Shell interprets every script; the script body is sent on stdin.
const Shell = "bash -s"

// Options configures a connection to the target host.
type Options struct {
	User           string
	Address        string // host:port
	KeyPath        string
	KnownHostsPath string
	Timeout        time.Duration
	// HostKeyCallback overrides the known_hosts policy. Tests only.
	HostKeyCallback ssh.HostKeyCallback
}

// Client is one SSH connection reused for every script of a deployment.
// Each Run opens its own session.
type Client struct {
	opts   Options
	conn   *ssh.Client
	closed sync.Once
}

// Connect dials the target and proves the session works by echoing a token.
// Every failure is classified as UnreachableHost.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	ctx, span := telemetry.Start(ctx, "remote.Connect", attribute.String("address", opts.Address))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	if opts.Timeout <= 0 {
		opts.Timeout = shared.DefaultConnectTimeout
	}

	// ASSESS
	signer, err := loadSigner(opts.KeyPath)
	if err != nil {
		return nil, unreachable(opts, "failed to load ssh key", err)
	}
	hostKeys := opts.HostKeyCallback
	if hostKeys == nil {
		hostKeys, err = TrustOnFirstUse(opts.KnownHostsPath, logger.ZapLogger())
		if err != nil {
			return nil, unreachable(opts, "failed to prepare known_hosts", err)
		}
	}

	// INTERVENE
	logger.Info("Connecting to target host",
		zap.String("user", opts.User),
		zap.String("address", opts.Address),
		zap.Duration("timeout", opts.Timeout))

	cfg := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	}
	conn, err := dial(ctx, opts.Address, cfg)
	if err != nil {
		span.RecordError(err)
		return nil, unreachable(opts, "ssh connection failed", err)
	}
	c := &Client{opts: opts, conn: conn}

	// EVALUATE
	probeCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	res, err := c.Run(probeCtx, NewScript("probe", true).Cmd("echo", shared.ProbeToken))
	if err != nil {
		_ = c.Close()
		return nil, unreachable(opts, "probe command failed", err)
	}
	if !strings.Contains(res.Output, shared.ProbeToken) {
		_ = c.Close()
		return nil, hermes_err.NewWithOutput(hermes_err.UnreachableHost, "connect",
			"probe did not echo "+shared.ProbeToken, res.Output, nil)
	}

	logger.Info("Target host reachable", zap.String("address", opts.Address))
	return c, nil
}

// Run sends s to the remote shell in a fresh session and returns the combined
// output. A non-zero exit is returned as *ExitError together with the Result.
func (c *Client) Run(ctx context.Context, s *Script) (*Result, error) {
	ctx, span := telemetry.Start(ctx, "remote.Run", attribute.String("script", s.Name))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, cerr.Wrapf(err, "open session for %s", s.Name)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdin = strings.NewReader(s.String())
	session.Stdout = &out
	session.Stderr = &out

	logger.Debug("Running remote script", zap.String("script", s.Name), zap.Strings("lines", s.Lines()))

	done := make(chan error, 1)
	go func() { done <- session.Run(Shell) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return &Result{Output: out.String(), ExitCode: -1}, ctx.Err()
	case err = <-done:
	}

	res := &Result{Output: out.String()}
	if err == nil {
		logger.Debug("Remote script succeeded", zap.String("script", s.Name))
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		span.RecordError(err)
		logger.Debug("Remote script exited non-zero",
			zap.String("script", s.Name),
			zap.Int("exit_code", res.ExitCode),
			zap.String("summary", hermes_err.ExtractSummary(res.Output, 2)))
		return res, &ExitError{Script: s.Name, ExitCode: res.ExitCode, Output: res.Output}
	}
	res.ExitCode = -1
	return res, cerr.Wrapf(err, "run %s", s.Name)
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closed.Do(func() { err = c.conn.Close() })
	return err
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	// The handshake is bounded by the same timeout as the dial.
	_ = nc.SetDeadline(time.Now().Add(cfg.Timeout))
	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, cfg)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	_ = nc.SetDeadline(time.Time{})
	return ssh.NewClient(sc, chans, reqs), nil
}

func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, cerr.WithHint(err, "passphrase-protected keys are not supported; load the key into a key file without a passphrase")
		}
		return nil, err
	}
	return signer, nil
}

func unreachable(opts Options, msg string, cause error) error {
	return hermes_err.New(hermes_err.UnreachableHost, "connect", msg, cause,
		"Check that "+opts.Address+" accepts SSH connections",
		"Check that the key at "+opts.KeyPath+" is authorized for "+opts.User)
}

// pkg/nginx/nginx.go

package nginx

import (
	"context"
	"path"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

const heredocMarker = "HERMES_NGINX_SITE"

// Script writes and enables the site, disables the default site, validates
// the configuration and reloads nginx.
func Script(c ProxySiteConfig) (*remote.Script, error) {
	body, err := c.Render()
	if err != nil {
		return nil, err
	}
	if strings.Contains(body, heredocMarker) {
		return nil, hermes_err.New(hermes_err.ProxyConfigInvalid, "configure-proxy", "site contents contain the heredoc marker", nil)
	}
	return remote.NewScript("configure-proxy", true).
		Raw(remote.Quote("sudo", "tee", c.AvailablePath()) + " >/dev/null <<'" + heredocMarker + "'\n" +
			strings.TrimRight(body, "\n") + "\n" + heredocMarker).
		Cmd("sudo", "ln", "-sfn", c.AvailablePath(), c.EnabledPath()).
		Cmd("sudo", "rm", "-f", path.Join(shared.NginxSitesEnabled, shared.NginxDefaultSite)).
		Cmd("sudo", "nginx", "-t").
		Cmd("sudo", "systemctl", "reload", "nginx"), nil
}

// Configurator installs the reverse proxy site on the target.
type Configurator struct {
	Runner remote.Runner
}

// Configure applies c. Any failure, including nginx -t rejecting the
// configuration, is ProxyConfigInvalid.
func (p *Configurator) Configure(ctx context.Context, c ProxySiteConfig) error {
	logger := otelzap.Ctx(ctx)

	script, err := Script(c)
	if err != nil {
		return hermes_err.New(hermes_err.ProxyConfigInvalid, "configure-proxy", "cannot render proxy site", err)
	}

	logger.Info("Configuring nginx reverse proxy",
		zap.String("site", c.SiteName),
		zap.String("server_name", c.ServerAddress),
		zap.Int("upstream_port", c.UpstreamPort))

	res, err := p.Runner.Run(ctx, script)
	if err != nil {
		out := ""
		if res != nil {
			out = res.Output
		}
		return hermes_err.NewWithOutput(hermes_err.ProxyConfigInvalid, "configure-proxy",
			"nginx configuration failed", out, err,
			"Run 'sudo nginx -t' on the target to see the offending directive")
	}
	logger.Info("nginx reloaded", zap.String("site", c.EnabledPath()))
	return nil
}

// pkg/nginx/site.go

package nginx

import (
	"bytes"
	"path"
	"text/template"

	cerr "github.com/cockroachdb/errors"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// ProxySiteConfig is one nginx server block forwarding port 80 to the application.
type ProxySiteConfig struct {
	SiteName      string `json:"site_name" yaml:"site_name"`
	ServerAddress string `json:"server_address" yaml:"server_address"`
	UpstreamPort  int    `json:"upstream_port" yaml:"upstream_port"`
}

var siteTemplate = template.Must(template.New("site").Parse(`server {
    listen 80;
    server_name {{ .ServerAddress }};

    location / {
        proxy_pass http://localhost:{{ .UpstreamPort }};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_cache_bypass $http_upgrade;
    }
}
`))

// Render returns the site file contents.
func (c ProxySiteConfig) Render() (string, error) {
	if c.SiteName == "" || c.ServerAddress == "" || c.UpstreamPort < 1 || c.UpstreamPort > 65535 {
		return "", cerr.Newf("incomplete proxy site: name=%q server=%q port=%d", c.SiteName, c.ServerAddress, c.UpstreamPort)
	}
	var buf bytes.Buffer
	if err := siteTemplate.Execute(&buf, c); err != nil {
		return "", cerr.Wrap(err, "render nginx site")
	}
	return buf.String(), nil
}

// AvailablePath is where the site file is written.
func (c ProxySiteConfig) AvailablePath() string {
	return path.Join(shared.NginxSitesAvailable, c.SiteName)
}

// EnabledPath is the symlink that activates the site.
func (c ProxySiteConfig) EnabledPath() string {
	return path.Join(shared.NginxSitesEnabled, c.SiteName)
}

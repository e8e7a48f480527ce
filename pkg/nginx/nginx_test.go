package nginx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/testutil"
)

func site() ProxySiteConfig {
	return ProxySiteConfig{SiteName: "app", ServerAddress: "203.0.113.10", UpstreamPort: 8080}
}

func TestRender(t *testing.T) {
	out, err := site().Render()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "server {\n    listen 80;\n    server_name 203.0.113.10;\n"))
	assert.Contains(t, out, "        proxy_pass http://localhost:8080;\n")
	assert.Contains(t, out, "proxy_set_header Upgrade $http_upgrade;")
	assert.Contains(t, out, `proxy_set_header Connection "upgrade";`)
	assert.Contains(t, out, "proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;")
	assert.Contains(t, out, "proxy_cache_bypass $http_upgrade;")
	assert.True(t, strings.HasSuffix(out, "    }\n}\n"))
}

func TestRenderRejectsIncomplete(t *testing.T) {
	for _, c := range []ProxySiteConfig{
		{ServerAddress: "h", UpstreamPort: 80},
		{SiteName: "app", UpstreamPort: 80},
		{SiteName: "app", ServerAddress: "h"},
		{SiteName: "app", ServerAddress: "h", UpstreamPort: 70000},
	} {
		_, err := c.Render()
		assert.Error(t, err)
	}
}

func TestScript(t *testing.T) {
	s, err := Script(site())
	require.NoError(t, err)
	body := s.String()

	assert.Contains(t, body, "sudo tee /etc/nginx/sites-available/app >/dev/null <<'HERMES_NGINX_SITE'\nserver {\n")
	assert.Contains(t, body, "}\nHERMES_NGINX_SITE\n")
	assert.Contains(t, body, "sudo ln -sfn /etc/nginx/sites-available/app /etc/nginx/sites-enabled/app\n")
	assert.Contains(t, body, "sudo rm -f /etc/nginx/sites-enabled/default\n")

	test := strings.Index(body, "sudo nginx -t")
	reload := strings.Index(body, "sudo systemctl reload nginx")
	require.Positive(t, test)
	assert.Less(t, test, reload)
}

func TestConfigure(t *testing.T) {
	fake := testutil.NewFakeRunner()
	require.NoError(t, (&Configurator{Runner: fake}).Configure(context.Background(), site()))
	assert.Equal(t, []string{"configure-proxy"}, fake.Names())
}

func TestConfigureInvalid(t *testing.T) {
	fake := testutil.NewFakeRunner().On("configure-proxy", testutil.FakeResponse{
		ExitCode: 1,
		Output:   "nginx: [emerg] unknown directive \"proxy_passs\"\nnginx: configuration file /etc/nginx/nginx.conf test failed\n",
	})
	err := (&Configurator{Runner: fake}).Configure(context.Background(), site())
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.ProxyConfigInvalid))
	de, _ := hermes_err.As(err)
	assert.Contains(t, de.Output, "test failed")
}

func TestConfigureIncompleteSite(t *testing.T) {
	fake := testutil.NewFakeRunner()
	err := (&Configurator{Runner: fake}).Configure(context.Background(), ProxySiteConfig{SiteName: "app"})
	assert.True(t, hermes_err.IsKind(err, hermes_err.ProxyConfigInvalid))
	assert.Empty(t, fake.Names())
}

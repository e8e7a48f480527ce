// pkg/provision/state.go

package provision

import (
	"context"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
)

// HostState is what the target has installed. It is derived by probing and never stored.
type HostState struct {
	Docker  bool `json:"docker" yaml:"docker"`
	Compose bool `json:"compose" yaml:"compose"`
	Nginx   bool `json:"nginx" yaml:"nginx"`
	Rsync   bool `json:"rsync" yaml:"rsync"`
}

// Ready reports whether provisioning would only re-run the idempotent parts.
func (s HostState) Ready() bool {
	return s.Docker && s.Compose && s.Nginx
}

var probedTools = []string{"docker", "docker-compose", "nginx", "rsync"}

// ProbeScript reports tool presence as name=yes|no lines.
func ProbeScript() *remote.Script {
	s := remote.NewScript("probe-host", false)
	for _, tool := range probedTools {
		q := remote.Quote(tool)
		s.Raw("if command -v " + q + " >/dev/null 2>&1; then echo " + q + "=yes; else echo " + q + "=no; fi")
	}
	return s
}

// Probe inspects the target without changing it.
func Probe(ctx context.Context, r remote.Runner) (HostState, error) {
	res, err := r.Run(ctx, ProbeScript())
	if err != nil {
		return HostState{}, err
	}
	return ParseHostState(res.Output), nil
}

// ParseHostState reads ProbeScript output.
func ParseHostState(out string) HostState {
	present := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		name, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			present[name] = val == "yes"
		}
	}
	return HostState{
		Docker:  present["docker"],
		Compose: present["docker-compose"],
		Nginx:   present["nginx"],
		Rsync:   present["rsync"],
	}
}

// Versions are the tool versions printed at the end of provisioning.
type Versions struct {
	Docker  string `json:"docker,omitempty" yaml:"docker,omitempty"`
	Compose string `json:"compose,omitempty" yaml:"compose,omitempty"`
	Nginx   string `json:"nginx,omitempty" yaml:"nginx,omitempty"`
}

var (
	dockerVersionRe  = regexp.MustCompile(`Docker version v?([0-9][0-9A-Za-z.+-]*?),?(?:\s|$)`)
	composeVersionRe = regexp.MustCompile(`(?i)docker[- ]compose version:? v?([0-9][0-9A-Za-z.+-]*?),?(?:\s|$)`)
	nginxVersionRe   = regexp.MustCompile(`nginx version: nginx/([0-9][0-9.]*)`)
)

// ParseVersions extracts versions from the combined provisioning output.
func ParseVersions(out string) Versions {
	var v Versions
	if m := dockerVersionRe.FindStringSubmatch(out); m != nil {
		v.Docker = m[1]
	}
	if m := composeVersionRe.FindStringSubmatch(out); m != nil {
		v.Compose = m[1]
	}
	if m := nginxVersionRe.FindStringSubmatch(out); m != nil {
		v.Nginx = m[1]
	}
	return v
}

// Minimum versions known to work with the generated commands.
var (
	MinDocker  = version.Must(version.NewVersion("20.10"))
	MinCompose = version.Must(version.NewVersion("1.29"))
	MinNginx   = version.Must(version.NewVersion("1.18"))
)

// Check compares v against the known minimums. It only returns advisories;
// old or unparsable versions never fail provisioning.
func (v Versions) Check() []string {
	var notes []string
	for _, c := range []struct {
		tool string
		got  string
		min  *version.Version
	}{
		{"docker", v.Docker, MinDocker},
		{"docker-compose", v.Compose, MinCompose},
		{"nginx", v.Nginx, MinNginx},
	} {
		if c.got == "" {
			notes = append(notes, c.tool+" version not reported")
			continue
		}
		got, err := version.NewVersion(c.got)
		if err != nil {
			notes = append(notes, c.tool+" version "+c.got+" is not parsable")
			continue
		}
		if got.LessThan(c.min) {
			notes = append(notes, c.tool+" "+c.got+" is older than "+c.min.Original())
		}
	}
	return notes
}

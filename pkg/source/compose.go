// pkg/source/compose.go
//
// Light inspection of a compose file: which services it defines and which
// host ports they publish. Deploy uses it to warn when the application port
// that the proxy will forward to is not published by any service.

package source

import (
	"os"
	"sort"
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// MaxComposeSize caps how much of a compose file is read.
const MaxComposeSize = 5 * 1024 * 1024

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image string        `yaml:"image,omitempty"`
	Build interface{}   `yaml:"build,omitempty"`
	Ports []interface{} `yaml:"ports,omitempty"`
}

// ComposeInfo summarizes a compose file.
type ComposeInfo struct {
	Services       []string `json:"services" yaml:"services"`
	PublishedPorts []int    `json:"published_ports,omitempty" yaml:"published_ports,omitempty"`
}

// Publishes reports whether any service publishes host port p.
func (c ComposeInfo) Publishes(p int) bool {
	for _, got := range c.PublishedPorts {
		if got == p {
			return true
		}
	}
	return false
}

// InspectCompose parses the compose file at path.
func InspectCompose(path string) (ComposeInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return ComposeInfo{}, err
	}
	if st.Size() > MaxComposeSize {
		return ComposeInfo{}, cerr.Newf("compose file %s is larger than %d bytes", path, MaxComposeSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ComposeInfo{}, err
	}

	var cf composeFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return ComposeInfo{}, cerr.Wrapf(err, "invalid YAML in %s", path)
	}
	if len(cf.Services) == 0 {
		return ComposeInfo{}, cerr.Newf("%s defines no services", path)
	}

	var info ComposeInfo
	seen := map[int]bool{}
	for name, svc := range cf.Services {
		info.Services = append(info.Services, name)
		for _, p := range svc.Ports {
			if hp, ok := publishedPort(p); ok && !seen[hp] {
				seen[hp] = true
				info.PublishedPorts = append(info.PublishedPorts, hp)
			}
		}
	}
	sort.Strings(info.Services)
	sort.Ints(info.PublishedPorts)
	return info, nil
}

// publishedPort extracts the host side of a port mapping. Short syntax
// ("8080:80", "127.0.0.1:8080:80/tcp") and long syntax ({published: 8080})
// are understood; a bare container port publishes nothing fixed.
func publishedPort(v interface{}) (int, bool) {
	switch p := v.(type) {
	case string:
		p = strings.SplitN(p, "/", 2)[0]
		parts := strings.Split(p, ":")
		if len(parts) < 2 {
			return 0, false
		}
		n, err := strconv.Atoi(parts[len(parts)-2])
		return n, err == nil && n > 0
	case map[string]interface{}:
		switch pub := p["published"].(type) {
		case int:
			return pub, pub > 0
		case string:
			n, err := strconv.Atoi(pub)
			return n, err == nil && n > 0
		}
	}
	return 0, false
}

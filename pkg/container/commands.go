// pkg/container/commands.go

package container

import (
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/source"
)

// Every docker command runs through sudo: the login user is only added to the
// docker group during provisioning, which does not affect the current session.
func docker(args ...string) []string {
	return append([]string{"sudo", "docker"}, args...)
}

func compose(name, file string, args ...string) []string {
	return append([]string{"sudo", "docker-compose", "-p", name, "-f", file}, args...)
}

// PrepareScript creates the remote project directory.
func PrepareScript(remoteDir string) *remote.Script {
	return remote.NewScript("prepare-remote-dir", true).Cmd("mkdir", "-p", remoteDir)
}

// StartScript replaces any prior instance of name and starts the new one.
func StartScript(spec Spec) *remote.Script {
	s := remote.NewScript("start-container", true).
		Cmd("cd", spec.RemoteDir).
		Tolerant(docker("stop", spec.Name)...).
		Tolerant(docker("rm", spec.Name)...)

	if spec.Descriptor.Mode() == source.ModeCompose {
		file := spec.Descriptor.ComposeFile
		return s.
			Tolerant(compose(spec.Name, file, "down")...).
			Cmd(compose(spec.Name, file, "up", "-d", "--build")...)
	}
	port := strconv.Itoa(spec.AppPort) + ":" + strconv.Itoa(shared.DefaultContainerPort)
	return s.
		Cmd(docker("build", "-t", spec.Name, ".")...).
		Cmd(docker("run", "-d", "--name", spec.Name, "-p", port, "--restart", "unless-stopped", spec.Name)...)
}

// ListScript prints the names of running containers, one per line.
func ListScript() *remote.Script {
	return remote.NewScript("list-containers", true).Cmd(docker("ps", "--format", "{{.Names}}")...)
}

// LogsScript prints the tail of the instance's logs.
func LogsScript(spec Spec, lines int) *remote.Script {
	n := strconv.Itoa(lines)
	s := remote.NewScript("container-logs", false)
	if spec.Descriptor.Mode() == source.ModeCompose {
		return s.Cmd("cd", spec.RemoteDir).Cmd(compose(spec.Name, spec.Descriptor.ComposeFile, "logs", "--tail", n)...)
	}
	return s.Cmd(docker("logs", "--tail", n, spec.Name)...)
}

// BelongsTo reports whether a running container name is the instance itself
// or one of its compose services (name-svc-1 for compose v2, name_svc_1 for v1).
func BelongsTo(instance, container string) bool {
	return container == instance ||
		strings.HasPrefix(container, instance+"-") ||
		strings.HasPrefix(container, instance+"_")
}

// Matching returns the running containers that belong to instance.
func Matching(instance, psOutput string) []string {
	var out []string
	for _, line := range strings.Split(psOutput, "\n") {
		name := strings.TrimSpace(line)
		if name != "" && BelongsTo(instance, name) {
			out = append(out, name)
		}
	}
	return out
}

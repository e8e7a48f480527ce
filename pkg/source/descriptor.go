// pkg/source/descriptor.go

package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
)

// Mode is how the application is built and started on the target.
type Mode string

const (
	ModeCompose Mode = "compose"
	ModeImage   Mode = "image"
)

// Dockerfile is the recognized single-image build file.
const Dockerfile = "Dockerfile"

// ComposeFiles are the recognized multi-container files, in lookup order.
var ComposeFiles = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// BuildDescriptor lists the build files found at the root of a working copy.
type BuildDescriptor struct {
	Dockerfile  string `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`
	ComposeFile string `json:"compose_file,omitempty" yaml:"compose_file,omitempty"`
}

// Mode prefers compose when both kinds of file exist.
func (d BuildDescriptor) Mode() Mode {
	if d.ComposeFile != "" {
		return ModeCompose
	}
	return ModeImage
}

// File is the descriptor that decides the mode.
func (d BuildDescriptor) File() string {
	if d.ComposeFile != "" {
		return d.ComposeFile
	}
	return d.Dockerfile
}

// Detect inspects the root of workDir. It fails with MissingBuildDescriptor
// when neither a Dockerfile nor a compose file is present.
func Detect(workDir string) (BuildDescriptor, error) {
	var d BuildDescriptor
	if isFile(filepath.Join(workDir, Dockerfile)) {
		d.Dockerfile = Dockerfile
	}
	for _, name := range ComposeFiles {
		if isFile(filepath.Join(workDir, name)) {
			d.ComposeFile = name
			break
		}
	}
	if d.Dockerfile == "" && d.ComposeFile == "" {
		return d, hermes_err.New(hermes_err.MissingBuildDescriptor, "validate-project",
			"no "+Dockerfile+" or compose file at the root of "+workDir, nil,
			"Add a "+Dockerfile+" or one of "+strings.Join(ComposeFiles, ", ")+" to the repository root")
	}
	return d, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

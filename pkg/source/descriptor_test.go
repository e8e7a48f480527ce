package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/testutil"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		mode    Mode
		file    string
		missing bool
	}{
		{name: "dockerfile only", files: map[string]string{"Dockerfile": "FROM nginx"}, mode: ModeImage, file: "Dockerfile"},
		{name: "compose only", files: map[string]string{"compose.yaml": "services: {}"}, mode: ModeCompose, file: "compose.yaml"},
		{
			name:  "compose wins over dockerfile",
			files: map[string]string{"Dockerfile": "FROM nginx", "docker-compose.yml": "services: {}"},
			mode:  ModeCompose,
			file:  "docker-compose.yml",
		},
		{
			name:  "first compose name in lookup order",
			files: map[string]string{"compose.yml": "", "docker-compose.yaml": ""},
			mode:  ModeCompose,
			file:  "docker-compose.yaml",
		},
		{name: "nested dockerfile ignored", files: map[string]string{"app/Dockerfile": "FROM nginx", "README.md": "hi"}, missing: true},
		{name: "empty repo", files: map[string]string{}, missing: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFiles(t, dir, tt.files)

			d, err := Detect(dir)
			if tt.missing {
				require.Error(t, err)
				assert.True(t, hermes_err.IsKind(err, hermes_err.MissingBuildDescriptor))
				assert.Equal(t, 2, hermes_err.GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, d.Mode())
			assert.Equal(t, tt.file, d.File())
		})
	}
}

func TestDetectDirectoryNamedDockerfile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"Dockerfile/keep": ""})
	_, err := Detect(dir)
	assert.True(t, hermes_err.IsKind(err, hermes_err.MissingBuildDescriptor))
}

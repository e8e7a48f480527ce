package hermes_err

import (
	"context"
	"errors"
	"fmt"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "MissingBuildDescriptor", MissingBuildDescriptor.String())
	assert.Equal(t, "UnreachableHost", UnreachableHost.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())

	text, err := ProxyConfigInvalid.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ProxyConfigInvalid", string(text))
}

func TestDeployErrorMessage(t *testing.T) {
	err := New(UnreachableHost, "connect", "cannot reach deploy@10.0.0.5:22", errors.New("i/o timeout"))
	assert.Equal(t, "UnreachableHost [connect]: cannot reach deploy@10.0.0.5:22: i/o timeout", err.Error())

	noCause := New(MissingBuildDescriptor, "validate-project", "no Dockerfile or compose file", nil)
	assert.Equal(t, "MissingBuildDescriptor [validate-project]: no Dockerfile or compose file", noCause.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := NewWithOutput(ProvisioningFailed, "provision", "remote provisioning failed", "E: Unable to locate package nginx", errors.New("exit status 100"))
	wrapped := cerr.Wrap(fmt.Errorf("step: %w", base), "pipeline aborted")

	assert.True(t, IsKind(wrapped, ProvisioningFailed))
	assert.False(t, IsKind(wrapped, TransferFailed))

	de, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "E: Unable to locate package nginx", de.Output)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", NewConfigError("repo url is required", nil), 2},
		{"missing descriptor", New(MissingBuildDescriptor, "validate-project", "none", nil), 2},
		{"unreachable", New(UnreachableHost, "connect", "down", nil), 1},
		{"validation", New(ValidationFailed, "verify", "nginx inactive", nil), 1},
		{"interrupted", cerr.Wrap(context.Canceled, "deploy"), 130},
		{"plain", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestIsExpectedUserError(t *testing.T) {
	assert.True(t, IsExpectedUserError(NewConfigError("bad port", nil)))
	assert.False(t, IsExpectedUserError(New(TransferFailed, "transfer", "rsync failed", nil)))
	assert.False(t, IsExpectedUserError(nil))
}

func TestExtractSummaryAndTail(t *testing.T) {
	out := "step one\nHit:1 http://archive.ubuntu.com\nE: Failed to fetch\nerror: exit 100\n"
	assert.Equal(t, "E: Failed to fetch - error: exit 100", ExtractSummary(out, 2))
	assert.Equal(t, "error: exit 100", ExtractSummary(out, 1))
	assert.Equal(t, "No output provided.", ExtractSummary("  ", 2))
	assert.Equal(t, "all good", ExtractSummary("booting\nall good\n", 2))

	assert.Equal(t, "b\nc", Tail("a\n\nb\nc\n", 2))
	assert.Equal(t, "", Tail("a", 0))
}

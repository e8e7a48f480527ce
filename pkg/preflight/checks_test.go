package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
)

func passing(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestRunChecksOptionalFailureWarns(t *testing.T) {
	results, err := RunChecks(context.Background(), []Check{
		{Name: "a", Check: passing, Required: true},
		{Name: "b", Check: failing("read-only"), Required: false},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "read-only", results[1].Warning)
}

func TestRunChecksRequiredFailureIsConfigInvalid(t *testing.T) {
	results, err := RunChecks(context.Background(), []Check{
		{Name: "rsync", Check: failing("rsync not found on PATH"), Required: true},
		{Name: "ssh", Check: passing, Required: true},
	})
	require.Error(t, err)
	assert.Len(t, results, 2, "every check runs even after a failure")
	assert.True(t, hermes_err.IsKind(err, hermes_err.ConfigInvalid))
	assert.Contains(t, err.Error(), "rsync: rsync not found on PATH")
}

func TestCheckBinary(t *testing.T) {
	assert.NoError(t, CheckBinary("sh")(context.Background()))
	assert.Error(t, CheckBinary("hermes-no-such-binary")(context.Background()))
}

func TestCheckBinaryRunsVersionCommand(t *testing.T) {
	assert.NoError(t, CheckBinary("sh", "-c", "echo 'sh 1.0'")(context.Background()))

	err := CheckBinary("sh", "-c", "echo 'library missing' >&2; exit 127")(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sh does not run")
	assert.Contains(t, err.Error(), "library missing")
}

func TestCheckPrivateKeyMode(t *testing.T) {
	dir := t.TempDir()
	tight := filepath.Join(dir, "tight")
	loose := filepath.Join(dir, "loose")
	require.NoError(t, os.WriteFile(tight, []byte("k"), 0o600))
	require.NoError(t, os.WriteFile(loose, []byte("k"), 0o600))
	require.NoError(t, os.Chmod(loose, 0o644))

	assert.NoError(t, CheckPrivateKeyMode(tight)(context.Background()))
	err := CheckPrivateKeyMode(loose)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0644")
	assert.Error(t, CheckPrivateKeyMode(filepath.Join(dir, "missing"))(context.Background()))
}

func TestCheckWritableDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "known_hosts")
	require.NoError(t, CheckWritableDir(path)(context.Background()))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

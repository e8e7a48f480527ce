package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG": zapcore.DebugLevel,
		"TRACE": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"ERROR": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "level %q", in)
	}
}

func TestGetLogFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hermes.log")

	w, err := GetLogFileWriter(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	w, err = GetLogFileWriter(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, strings.Fields(string(data)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGetLoggerFallsBack(t *testing.T) {
	SetLogger(nil)
	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, L())
}

func TestColouredLevel(t *testing.T) {
	assert.Contains(t, ColouredLevel(zapcore.ErrorLevel), "ERROR")
	assert.Contains(t, ColouredLevel(zapcore.InfoLevel), "\033[32m")
}

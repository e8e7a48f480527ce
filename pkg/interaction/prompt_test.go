package interaction

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

func newPrompter(input, secret string) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Prompter{
		In:         bufio.NewReader(strings.NewReader(input)),
		Out:        out,
		ReadSecret: func() (string, error) { return secret, nil },
		Terminal:   true,
	}, out
}

func TestPromptIfMissingKeepsProvidedValue(t *testing.T) {
	v := viper.New()
	v.Set("repo", "https://git.example/app.git")
	p, out := newPrompter("ignored\n", "")

	require.NoError(t, p.PromptIfMissing(context.Background(), v, Field{Key: "repo", Label: "Repository URL"}))
	assert.Equal(t, "https://git.example/app.git", v.GetString("repo"))
	assert.Empty(t, out.String())
}

func TestPromptIfMissingReadsLine(t *testing.T) {
	v := viper.New()
	p, out := newPrompter("  deploy  \n", "")

	require.NoError(t, p.PromptIfMissing(context.Background(), v, Field{Key: "user", Label: "SSH user"}))
	assert.Equal(t, "deploy", v.GetString("user"))
	assert.Equal(t, "SSH user: ", out.String())
}

func TestPromptIfMissingSecretIsHidden(t *testing.T) {
	v := viper.New()
	p, out := newPrompter("", " ghp_token \n")

	require.NoError(t, p.PromptIfMissing(context.Background(), v, Field{Key: "token", Label: "Access token", Secret: true}))
	assert.Equal(t, "ghp_token", v.GetString("token"))
	assert.NotContains(t, out.String(), "ghp_token")
}

func TestPromptIfMissingRetriesInvalid(t *testing.T) {
	v := viper.New()
	p, out := newPrompter("not a url\nhttps://git.example/app.git\n", "")

	err := p.PromptIfMissing(context.Background(), v, Field{Key: "repo", Label: "Repository URL", Validate: ValidateURL})
	require.NoError(t, err)
	assert.Equal(t, "https://git.example/app.git", v.GetString("repo"))
	assert.Contains(t, out.String(), "invalid URL")
}

func TestPromptIfMissingGivesUp(t *testing.T) {
	v := viper.New()
	p, _ := newPrompter("x\ny\nz\n", "")

	err := p.PromptIfMissing(context.Background(), v, Field{Key: "port", Label: "Port", Validate: ValidatePort})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Empty(t, v.GetString("port"))
}

func TestPromptIfMissingWithoutTerminal(t *testing.T) {
	v := viper.New()
	p, _ := newPrompter("", "")
	p.Terminal = false

	err := p.PromptIfMissing(context.Background(), v, Field{Key: "repo", Label: "Repository URL"})
	assert.ErrorIs(t, err, shared.ErrNotTTY)
	assert.NoError(t, p.FillMissing(context.Background(), v, []Field{{Key: "repo"}}))
}

func TestFillMissingStopsOnReadError(t *testing.T) {
	v := viper.New()
	p, _ := newPrompter("", "")
	p.ReadSecret = func() (string, error) { return "", errors.New("tty closed") }

	err := p.FillMissing(context.Background(), v, []Field{{Key: "token", Label: "Token", Secret: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty closed")
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidatePort(""))
	assert.NoError(t, ValidatePort("8080"))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("65536"))
	assert.Error(t, ValidateURL("git.example/app"))
	assert.NoError(t, ValidateURL("https://git.example/app.git"))
	assert.Error(t, ValidateNonEmpty("   "))
	assert.Error(t, ValidateNoShellMeta("a; rm -rf /"))

	key := filepath.Join(t.TempDir(), "id")
	require.NoError(t, os.WriteFile(key, []byte("k"), 0600))
	assert.NoError(t, ValidateFile(key))
	assert.Error(t, ValidateFile(filepath.Dir(key)))
	assert.Error(t, ValidateFile(key+".missing"))
}

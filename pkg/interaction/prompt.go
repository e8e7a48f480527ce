// pkg/interaction/prompt.go

package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// MaxAttempts bounds how often a rejected answer is asked for again.
const MaxAttempts = 3

// Field is one configuration key that may be asked for interactively.
type Field struct {
	Key      string
	Label    string
	Secret   bool
	Validate func(string) error
}

// Prompter asks for missing values. Prompts go to Out (stderr by default)
// so stdout stays clean for machine-readable output.
type Prompter struct {
	In         *bufio.Reader
	Out        io.Writer
	ReadSecret func() (string, error)
	Terminal   bool
}

// NewTerminalPrompter reads from stdin and hides secret input with x/term.
func NewTerminalPrompter() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		In:  bufio.NewReader(os.Stdin),
		Out: os.Stderr,
		ReadSecret: func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		},
		Terminal: term.IsTerminal(fd),
	}
}

// PromptIfMissing asks for f when v holds no value for it and stores the answer in v.
func (p *Prompter) PromptIfMissing(ctx context.Context, v *viper.Viper, f Field) error {
	logger := otelzap.Ctx(ctx)
	if strings.TrimSpace(v.GetString(f.Key)) != "" {
		logger.Debug("Value provided", zap.String("key", f.Key))
		return nil
	}
	if !p.Terminal {
		return shared.ErrNotTTY
	}

	logger.Info("Prompting for missing value", zap.String("key", f.Key), zap.Bool("is_secret", f.Secret))
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		val, err := p.ask(ctx, f)
		if err != nil {
			return cerr.Wrapf(err, "read %s", f.Key)
		}
		if f.Validate != nil {
			if lastErr = f.Validate(val); lastErr != nil {
				_, _ = fmt.Fprintf(p.Out, "%v\n", lastErr)
				logger.Warn("Rejected input", zap.String("key", f.Key), zap.Int("attempt", attempt), zap.Error(lastErr))
				continue
			}
		}
		v.Set(f.Key, val)
		return nil
	}
	return cerr.Wrapf(lastErr, "no valid value for %s after %d attempts", f.Key, MaxAttempts)
}

// FillMissing prompts for every missing field. Without a terminal it does
// nothing and leaves validation to report what is missing.
func (p *Prompter) FillMissing(ctx context.Context, v *viper.Viper, fields []Field) error {
	if !p.Terminal {
		otelzap.Ctx(ctx).Debug("Not a terminal, skipping prompts")
		return nil
	}
	for _, f := range fields {
		if err := p.PromptIfMissing(ctx, v, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prompter) ask(ctx context.Context, f Field) (string, error) {
	if !f.Secret {
		return ReadLine(ctx, p.In, p.Out, f.Label)
	}
	_, _ = fmt.Fprint(p.Out, f.Label+": ")
	secret, err := p.ReadSecret()
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secret), nil
}

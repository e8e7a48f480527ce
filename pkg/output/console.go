// pkg/output/console.go

package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/pipeline"
)

// Palette
var (
	ColorSuccess = lipgloss.Color("#00ff00")
	ColorWarning = lipgloss.Color("#ffaa00")
	ColorError   = lipgloss.Color("#ff0000")
	ColorInfo    = lipgloss.Color("#0099ff")
	ColorMuted   = lipgloss.Color("#666666")
)

// Console prints timestamped status lines as the pipeline runs.
// Colour is only emitted when the writer is a terminal.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time

	stamp   lipgloss.Style
	info    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

var _ pipeline.Observer = (*Console)(nil)

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:       w,
		now:     time.Now,
		stamp:   r.NewStyle().Foreground(ColorMuted),
		info:    r.NewStyle().Foreground(ColorInfo),
		ok:      r.NewStyle().Foreground(ColorSuccess),
		warn:    r.NewStyle().Foreground(ColorWarning).Bold(true),
		fail:    r.NewStyle().Foreground(ColorError).Bold(true),
		muted:   r.NewStyle().Foreground(ColorMuted),
		heading: r.NewStyle().Bold(true),
	}
}

func (c *Console) line(label lipgloss.Style, tag, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s %s\n",
		c.stamp.Render(c.now().Format("15:04:05")), label.Render(tag), msg)
}

// Infof prints an informational status line.
func (c *Console) Infof(format string, args ...interface{}) {
	c.line(c.info, "INFO", fmt.Sprintf(format, args...))
}

// StepStarted implements pipeline.Observer.
func (c *Console) StepStarted(name string) {
	c.line(c.info, "....", name)
}

// StepFinished implements pipeline.Observer.
func (c *Console) StepFinished(res pipeline.StepResult) {
	took := c.muted.Render("(" + res.Duration.Round(time.Millisecond).String() + ")")
	switch res.Status {
	case pipeline.StatusOK:
		c.line(c.ok, " OK ", res.Name+" "+took)
	case pipeline.StatusWarning:
		c.line(c.warn, "WARN", res.Name+" "+took)
	case pipeline.StatusSkipped:
		c.line(c.muted, "SKIP", res.Name)
	default:
		c.line(c.fail, "FAIL", res.Name+" "+took)
	}
}

// Warned implements pipeline.Observer.
func (c *Console) Warned(step string, err error) {
	c.line(c.warn, "WARN", step+": "+err.Error())
}

// Summary prints the closing block of a successful run.
func (c *Console) Summary(report *pipeline.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n" + c.ok.Render("Deployment succeeded") + "\n")
	keys := make([]string, 0, len(report.Summary))
	for k := range report.Summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := NewTableTo(&b).WithBorder(false)
	for _, k := range keys {
		t.AddRow("  "+k+":", report.Summary[k])
	}
	if err := t.Render(); err != nil {
		return err
	}
	if len(report.Warnings) > 0 {
		b.WriteString(c.warn.Render(fmt.Sprintf("%d warning(s):", len(report.Warnings))) + "\n")
		for _, w := range report.Warnings {
			b.WriteString("  - " + w + "\n")
		}
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

// Failure prints the ERROR line naming the failed step, then the tail of
// the command output and any remediation hints.
func (c *Console) Failure(report *pipeline.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	step := report.FailedStep
	if step == "" {
		step = "unknown"
	}
	b.WriteString("\n" + c.fail.Render("ERROR") + " " + step + ": " + report.Error + "\n")
	if report.Output != "" {
		b.WriteString(c.heading.Render("Output:") + "\n")
		for _, l := range strings.Split(report.Output, "\n") {
			b.WriteString("  " + c.muted.Render("|") + " " + l + "\n")
		}
	}
	if len(report.Hints) > 0 {
		b.WriteString(c.heading.Render("Try:") + "\n")
		for _, h := range report.Hints {
			b.WriteString("  - " + h + "\n")
		}
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

// Steps prints one row per step.
func (c *Console) Steps(report *pipeline.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := NewTableTo(c.w).WithHeaders("STEP", "POLICY", "STATUS", "DURATION")
	for _, s := range report.Steps {
		t.AddRow(s.Name, s.Policy.String(), string(s.Status), s.Duration.Round(time.Millisecond).String())
	}
	return t.Render()
}

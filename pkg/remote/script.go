// pkg/remote/script.go

package remote

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Script is a bash script executed in one remote session. Every argument
// added with Cmd or Tolerant is shell-quoted; Raw lines are taken verbatim.
type Script struct {
	Name   string
	Strict bool
	lines  []string
}

// NewScript returns an empty script. A strict script aborts on the first
// failing command, including failures inside pipelines.
func NewScript(name string, strict bool) *Script {
	return &Script{Name: name, Strict: strict}
}

// Cmd appends a command whose failure fails a strict script.
func (s *Script) Cmd(args ...string) *Script {
	s.lines = append(s.lines, Quote(args...))
	return s
}

// Tolerant appends a command whose failure is ignored.
func (s *Script) Tolerant(args ...string) *Script {
	s.lines = append(s.lines, Quote(args...)+" || true")
	return s
}

// Raw appends a line verbatim. Callers quote any variable parts with Quote.
func (s *Script) Raw(line string) *Script {
	s.lines = append(s.lines, line)
	return s
}

// Lines returns the script body without the preamble.
func (s *Script) Lines() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Script) String() string {
	var b strings.Builder
	if s.Strict {
		b.WriteString("set -eo pipefail\n")
	}
	for _, l := range s.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Quote renders args as one shell command line.
func Quote(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			// Only strings with NUL bytes fail to quote; they cannot be passed to a command anyway.
			q = "''"
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}

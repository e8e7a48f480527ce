// pkg/testutil/remote.go

package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/remote"
)

// FakeResponse is what FakeRunner answers for a script.
type FakeResponse struct {
	Output   string
	ExitCode int
	Err      error
}

// FakeRunner records every script and answers from Responses, keyed by script name.
// Scripts without a response succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	Responses map[string]FakeResponse
	Scripts   []*remote.Script
	Closed    int
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: map[string]FakeResponse{}}
}

// On sets the response for scripts named name.
func (f *FakeRunner) On(name string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[name] = resp
	return f
}

func (f *FakeRunner) Run(ctx context.Context, s *remote.Script) (*remote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts = append(f.Scripts, s)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := f.Responses[s.Name]
	res := &remote.Result{Output: resp.Output, ExitCode: resp.ExitCode}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &remote.ExitError{Script: s.Name, ExitCode: resp.ExitCode, Output: resp.Output}
	}
	return res, nil
}

// Names lists the scripts run so far, in order.
func (f *FakeRunner) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.Scripts))
	for i, s := range f.Scripts {
		names[i] = s.Name
	}
	return names
}

// Script returns the last script named name, or nil.
func (f *FakeRunner) Script(name string) *remote.Script {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Scripts) - 1; i >= 0; i-- {
		if f.Scripts[i].Name == name {
			return f.Scripts[i]
		}
	}
	return nil
}

// Transcript joins every script body, handy for Contains assertions.
func (f *FakeRunner) Transcript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, s := range f.Scripts {
		b.WriteString("# " + s.Name + "\n")
		b.WriteString(s.String())
	}
	return b.String()
}

// Close counts calls so tests can assert the connection was released.
func (f *FakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed++
	return nil
}

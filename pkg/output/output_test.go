package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/pipeline"
)

func fixedConsole(buf *bytes.Buffer) *Console {
	c := NewConsole(buf)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC) }
	return c
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestConsoleStatusLines(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)

	c.StepStarted("fetch-source")
	c.StepFinished(pipeline.StepResult{Name: "fetch-source", Status: pipeline.StatusOK, Duration: 1500 * time.Millisecond})
	c.Warned("fetch-source", errors.New("pull failed"))
	c.StepFinished(pipeline.StepResult{Name: "transfer", Status: pipeline.StatusSkipped})

	out := buf.String()
	assert.Contains(t, out, "09:30:15 .... fetch-source\n")
	assert.Contains(t, out, "09:30:15  OK  fetch-source (1.5s)\n")
	assert.Contains(t, out, "WARN fetch-source: pull failed")
	assert.Contains(t, out, "SKIP transfer")
}

func TestRenderTextSuccess(t *testing.T) {
	report := &pipeline.Report{
		Succeeded: true,
		Summary:   map[string]string{"url": "http://203.0.113.7", "instance": "web"},
		Warnings:  []string{"public-probe: timeout"},
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, report))

	out := buf.String()
	assert.Contains(t, out, "Deployment succeeded")
	assert.Contains(t, out, "http://203.0.113.7")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("instance:")), bytes.Index(buf.Bytes(), []byte("url:")))
	assert.Contains(t, out, "1 warning(s):")
	assert.Contains(t, out, "  - public-probe: timeout")
}

func TestRenderTextFailure(t *testing.T) {
	report := &pipeline.Report{
		FailedStep: "start-container",
		Error:      "ContainerStartFailed: container web is not running",
		Output:     "Error: port is already allocated",
		Hints:      []string{"Inspect: docker logs web"},
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, report))

	out := buf.String()
	assert.Contains(t, out, "ERROR start-container: ContainerStartFailed")
	assert.Contains(t, out, "| Error: port is already allocated")
	assert.Contains(t, out, "  - Inspect: docker logs web")
}

func TestRenderMachineFormats(t *testing.T) {
	report := &pipeline.Report{
		RunID:     "r-1",
		Succeeded: true,
		Steps:     []pipeline.StepResult{{Name: "connect", Policy: pipeline.Tolerant, Status: pipeline.StatusOK}},
	}

	var js bytes.Buffer
	require.NoError(t, Render(&js, FormatJSON, report))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "r-1", decoded["run_id"])
	steps := decoded["steps"].([]interface{})
	assert.Equal(t, "tolerant", steps[0].(map[string]interface{})["policy"])

	var ym bytes.Buffer
	require.NoError(t, Render(&ym, FormatYAML, report))
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, "r-1", fromYAML["run_id"])
	assert.Equal(t, true, fromYAML["succeeded"])
}

func TestStepsTable(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)
	require.NoError(t, c.Steps(&pipeline.Report{Steps: []pipeline.StepResult{
		{Name: "connect", Status: pipeline.StatusOK, Duration: 2 * time.Second},
	}}))
	assert.Contains(t, buf.String(), "STEP")
	assert.Contains(t, buf.String(), "connect  fatal   ok")
}

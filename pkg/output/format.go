// Package output renders deployment progress and run reports for the terminal
// and for machines (JSON, YAML).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/pipeline"
)

// Format selects how a report is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml (case-insensitive, empty means text).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// JSONTo writes data as indented JSON.
func JSONTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAMLTo writes data as YAML with two-space indentation.
func YAMLTo(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Render writes the final report in the requested format. Text output is the
// summary block on success and the failure block otherwise.
func Render(w io.Writer, format Format, report *pipeline.Report) error {
	switch format {
	case FormatJSON:
		return JSONTo(w, report)
	case FormatYAML:
		return YAMLTo(w, report)
	default:
		c := NewConsole(w)
		if report.Succeeded {
			return c.Summary(report)
		}
		return c.Failure(report)
	}
}

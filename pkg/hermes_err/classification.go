// pkg/hermes_err/classification.go
//
// Error taxonomy for the deployment pipeline with exit codes.

package hermes_err

import (
	"context"
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// Kind classifies a fatal pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	ConfigInvalid
	SourceFetchFailed
	MissingBuildDescriptor
	UnreachableHost
	ProvisioningFailed
	TransferFailed
	ContainerStartFailed
	ProxyConfigInvalid
	ValidationFailed
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	ConfigInvalid:          "ConfigInvalid",
	SourceFetchFailed:      "SourceFetchFailed",
	MissingBuildDescriptor: "MissingBuildDescriptor",
	UnreachableHost:        "UnreachableHost",
	ProvisioningFailed:     "ProvisioningFailed",
	TransferFailed:         "TransferFailed",
	ContainerStartFailed:   "ContainerStartFailed",
	ProxyConfigInvalid:     "ProxyConfigInvalid",
	ValidationFailed:       "ValidationFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText lets reports carry the kind name in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DeployError is a fatal, classified failure of one pipeline step.
type DeployError struct {
	Kind        Kind
	Step        string
	Message     string
	Cause       error
	Output      string
	Remediation []string
}

// Error implements the error interface
func (e *DeployError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Step != "" {
		sb.WriteString(" [" + e.Step + "]")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error kind.
func (e *DeployError) ExitCode() int {
	switch e.Kind {
	case ConfigInvalid, MissingBuildDescriptor:
		return 2 // operator input or project layout
	default:
		return 1
	}
}

// New creates a classified error with a captured stack.
func New(kind Kind, step, message string, cause error, remediation ...string) error {
	return cerr.WithStack(&DeployError{
		Kind:        kind,
		Step:        step,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	})
}

// NewWithOutput is New plus the remote or local command output that explains the failure.
func NewWithOutput(kind Kind, step, message, output string, cause error, remediation ...string) error {
	return cerr.WithStack(&DeployError{
		Kind:        kind,
		Step:        step,
		Message:     message,
		Cause:       cause,
		Output:      output,
		Remediation: remediation,
	})
}

// NewConfigError creates a ConfigInvalid error.
func NewConfigError(message string, cause error) error {
	return New(ConfigInvalid, "config", message, cause,
		"Check the flags, HERMES_* environment variables and config file",
		"Run: hermes deploy --help")
}

// As extracts the DeployError from err.
func As(err error) (*DeployError, bool) {
	var de *DeployError
	if cerr.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsExpectedUserError reports errors caused by operator input rather than the system.
func IsExpectedUserError(err error) bool {
	switch KindOf(err) {
	case ConfigInvalid, MissingBuildDescriptor:
		return true
	}
	return false
}

// GetExitCode extracts exit code from any error
// Returns 0 for nil, 130 for interrupts, the kind's code for classified errors, 1 otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	if cerr.Is(err, context.Canceled) {
		return 130 // Standard for SIGINT (Ctrl-C)
	}
	if de, ok := As(err); ok {
		return de.ExitCode()
	}
	return 1
}

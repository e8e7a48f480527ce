// pkg/hermes_cli/reported.go

package hermes_cli

import cerr "github.com/cockroachdb/errors"

var errReported = cerr.New("already reported to the operator")

// Reported marks err as already printed by the command, so Execute only
// sets the exit code for it.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return cerr.Mark(err, errReported)
}

// IsReported reports whether err was marked by Reported.
func IsReported(err error) bool {
	return err != nil && cerr.Is(err, errReported)
}

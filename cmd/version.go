/* cmd/version.go */

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_cli"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_io"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hermes version",
	Args:  cobra.NoArgs,
	RunE: hermes_cli.Wrap(func(rc *hermes_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "hermes %s (%s %s/%s)\n",
			shared.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	}),
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/version"
)

var isNewerCmd = &cobra.Command{
	Use:   "is-newer <candidate> <current>",
	Short: "Print whether a version is newer than another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.IsNewer(args[0], args[1]))
		return err
	},
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var branchVersionCmd = &cobra.Command{
	Use:   "branch-version <branch>",
	Short: "Print the Version header of a branch's plugin entry file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}

		v, err := eng.BranchVersion(context.Background(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
		return err
	},
}

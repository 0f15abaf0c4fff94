package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old-id> <new-id>",
		Short: "Rename an entry, replacing any entry stored under the new id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Move(cmd.Context(), c.cache, args[0], args[1])
		},
	}
}

package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

func (c *CLI) newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs error
			for _, id := range args {
				errs = errors.Join(errs, c.app.Remove(cmd.Context(), c.cache, id))
			}
			return errs
		},
	}
}

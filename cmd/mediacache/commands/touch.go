package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newTouchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "touch <id>",
		Short: "Refresh the access time of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			found, err := c.app.Touch(cmd.Context(), c.cache, args[0], force)
			if err != nil {
				return err
			}
			if !found {
				return zerr.With(zerr.Wrap(domain.ErrNotFound, "nothing to touch"), "id", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolP("force", "f", false, "Also refresh variants that do not extend their expiry on access")

	return cmd
}

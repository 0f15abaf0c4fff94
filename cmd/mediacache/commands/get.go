package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write the cached bytes of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			partial, _ := cmd.Flags().GetBool("partial")

			if out != "" {
				return c.app.Export(cmd.Context(), c.cache, args[0], out)
			}

			entry, err := c.app.Get(cmd.Context(), c.cache, args[0], partial)
			if err != nil {
				return err
			}

			data := entry.Partial.Data
			if entry.Complete != nil {
				data = entry.Complete.Data
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write the complete variant to a file instead of stdout")
	cmd.Flags().Bool("partial", false, "Fall back to the partial variant when there is no complete one")

	return cmd
}

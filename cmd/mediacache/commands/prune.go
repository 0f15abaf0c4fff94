package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used entries until the budget is met",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			evicted, err := c.app.Prune(cmd.Context())
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).line("pruned %d entries", evicted)
			return nil
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mediacache/internal/app"
)

func (c *CLI) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the entries of the configured caches",
		Long: "List every stored variant, most recently used first.\n" +
			"Without --cache all configured caches are listed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checksums, _ := cmd.Flags().GetBool("checksums")

			snaps, err := c.app.Inspect(cmd.Context(), app.InspectOptions{
				Cache:     c.cache,
				Checksums: checksums,
			})
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			for _, snap := range snaps {
				p.inspection(snap)
			}
			return nil
		},
	}

	cmd.Flags().Bool("checksums", false, "Hash every stored file")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mediacache/internal/app"
)

func (c *CLI) newPutCmd() *cobra.Command {
	opts := app.PutOptions{}

	cmd := &cobra.Command{
		Use:   "put <id> <file>",
		Short: "Store a file as a variant of an entry",
		Long: "Store a file as a variant of an entry.\n" +
			"Use - as the file to stream stdin through a temp file.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Cache = c.cache
			opts.ID = args[0]
			opts.Source = args[1]
			opts.Stdin = cmd.InOrStdin()
			return c.app.Put(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "", "Source URL of the artifact (defaults to the id)")
	f.Float64Var(&opts.Width, "width", 1, "Pixel width")
	f.Float64Var(&opts.Height, "height", 1, "Pixel height")
	f.DurationVar(&opts.TTL, "ttl", 0, "Time to live (defaults to the cache setting)")
	f.StringVar(&opts.ImageType, "type", "", "Image type identifier")
	f.BoolVar(&opts.Partial, "partial", false, "Store as an interrupted download")
	f.StringVar(&opts.LastModified, "last-modified", "", "Validator of the interrupted download")
	f.Int64Var(&opts.ExpectedLength, "expected-length", 0, "Full length of the interrupted download")
	f.BoolVar(&opts.Placeholder, "placeholder", false, "Mark as a low fidelity placeholder")
	f.BoolVar(&opts.Animated, "animated", false, "Mark as animated")
	f.BoolVar(&opts.NoTouch, "no-touch", false, "Do not extend the expiry when the entry is read")
	f.BoolVarP(&opts.Force, "force", "f", false, "Replace whatever is stored")

	return cmd
}

// Package commands implements the CLI commands for mediacache.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/mediacache/internal/app"
	"go.trai.ch/mediacache/internal/build"
	"go.trai.ch/mediacache/internal/core/domain"
)

// CLI represents the command line interface for mediacache.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	cache   string
}

// Application represents the application logic interface.
type Application interface {
	WithConfigPath(path string) *app.App
	Inspect(ctx context.Context, opts app.InspectOptions) ([]domain.Inspection, error)
	Get(ctx context.Context, cache, id string, allowPartial bool) (*domain.Entry, error)
	Export(ctx context.Context, cache, id, dst string) error
	Put(ctx context.Context, opts app.PutOptions) error
	Remove(ctx context.Context, cache, id string) error
	Move(ctx context.Context, cache, oldID, newID string) error
	Touch(ctx context.Context, cache, id string, force bool) (bool, error)
	Clear(ctx context.Context, cache string) error
	Prune(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (app.Stats, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "mediacache",
		Short:         "Inspect and manage persistent media caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&c.cache, "cache", "", "Cache to operate on (defaults to the first configured cache)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		path, _ := cmd.Flags().GetString("config")
		c.app.WithConfigPath(path)
	}

	rootCmd.AddCommand(c.newInspectCmd())
	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newPutCmd())
	rootCmd.AddCommand(c.newRmCmd())
	rootCmd.AddCommand(c.newMvCmd())
	rootCmd.AddCommand(c.newTouchCmd())
	rootCmd.AddCommand(c.newClearCmd())
	rootCmd.AddCommand(c.newPruneCmd())
	rootCmd.AddCommand(c.newStatsCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetInput sets the input stream for the root command. Used for testing.
func (c *CLI) SetInput(in io.Reader) {
	c.rootCmd.SetIn(in)
}

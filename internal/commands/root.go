package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/piecebook/internal/buildinfo"
	"github.com/cleared-dev/piecebook/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	actorID    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "piecebook",
		Short:   "Multi-tenant journal posting",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.FileName, "config file")
	rootCmd.PersistentFlags().StringVar(&g.actorID, "actor", "cli", "actor recorded in the activity log")

	rootCmd.AddCommand(
		newInitCommand(),
		newPieceCommand(g),
		newAccountsCommand(g),
		newActivityCommand(g),
		newServeCommand(g),
	)

	return rootCmd
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(a *app) error) error {
	a, err := openApp(cmd.Context(), g.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

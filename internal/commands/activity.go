package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/piecebook/internal/activity"
)

func newActivityCommand(g *globalFlags) *cobra.Command {
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect the audit trail",
	}
	activityCmd.AddCommand(newActivityListCommand(g), newActivityExportCommand(g))
	return activityCmd
}

func newActivityListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activity records, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				entries, err := a.journals.ListActivity(cmd.Context(), a.actor(g.actorID))
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tACTOR\tDESCRIPTION")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActorID, e.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newActivityExportCommand(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the audit trail as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				entries, err := a.journals.ListActivity(cmd.Context(), a.actor(g.actorID))
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return activity.WriteCSV(w, entries)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}


package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/piecebook/internal/accounts"
	"github.com/cleared-dev/piecebook/internal/model"
)

func newAccountsCommand(g *globalFlags) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts, journals and auxiliaries",
	}
	accountsCmd.AddCommand(
		newAccountsListCommand(g),
		newAccountsImportCommand(g),
		newAccountsExportCommand(g),
		newJournalsListCommand(g),
		newAuxiliariesListCommand(g),
	)
	return accountsCmd
}

func newAccountsListCommand(g *globalFlags) *cobra.Command {
	var accountType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := model.AccountType(accountType)
			if t != "" && !t.Valid() {
				return fmt.Errorf("unknown account type %q", accountType)
			}
			return withApp(cmd, g, func(a *app) error {
				var all []model.Account
				var err error
				if t == "" {
					all, err = a.accounts.All(cmd.Context(), a.cfg.Tenant.ID)
				} else {
					all, err = a.accounts.ByType(cmd.Context(), a.cfg.Tenant.ID, t)
				}
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tLABEL\tTYPE\tAUXILIARY")
				for _, acct := range all {
					aux := ""
					if acct.IsAuxiliaryRequired {
						aux = "required"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", acct.Code, acct.Label, acct.Type, aux)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&accountType, "type", "t", "", "only accounts of this type (asset, liability, equity, revenue, expense)")
	return cmd
}

func newAccountsImportCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Add accounts from a chart CSV, skipping existing codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			chart, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(a *app) error {
				n, err := a.accounts.ImportChart(cmd.Context(), a.cfg.Tenant.ID, chart)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d accounts\n", n, len(chart))
				return nil
			})
		},
	}
}

func newAccountsExportCommand(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				all, err := a.accounts.All(cmd.Context(), a.cfg.Tenant.ID)
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return accounts.WriteAccounts(w, all)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newJournalsListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "journals",
		Short: "List the tenant's journals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				journals, err := a.accounts.Journals(cmd.Context(), a.cfg.Tenant.ID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tLABEL\tNATURE\tID")
				for _, j := range journals {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Code, j.Label, j.Nature, j.ID)
				}
				return tw.Flush()
			})
		},
	}
}

func newAuxiliariesListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "auxiliaries",
		Short: "List customers and suppliers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				all, err := a.accounts.Auxiliaries(cmd.Context(), a.cfg.Tenant.ID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tLABEL\tTYPE\tID")
				for _, aux := range all {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", aux.Code, aux.Label, aux.Type, aux.ID)
				}
				return tw.Flush()
			})
		},
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/piecebook/internal/importer"
	"github.com/cleared-dev/piecebook/internal/journal"
	"github.com/cleared-dev/piecebook/internal/model"
	"github.com/cleared-dev/piecebook/internal/store"
)

func newPieceCommand(g *globalFlags) *cobra.Command {
	pieceCmd := &cobra.Command{
		Use:   "piece",
		Short: "Post, correct and inspect pieces",
	}
	pieceCmd.AddCommand(
		newPiecePostCommand(g),
		newPieceUpdateCommand(g),
		newPieceDeleteCommand(g),
		newPieceShowCommand(g),
		newPieceListCommand(g),
		newPieceImportCommand(g),
		newPieceImportBankCommand(g),
		newPieceExportCommand(g),
	)
	return pieceCmd
}

// proposalFlags describe a piece on the command line.
type proposalFlags struct {
	journal   string
	date      string
	reference string
	lines     []string
}

func (f *proposalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.journal, "journal", "j", "", "journal code, e.g. ACH")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "posting date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&f.reference, "reference", "r", "", "free-text reference")
	cmd.Flags().StringArrayVarP(&f.lines, "line", "l", nil,
		"line as ACCOUNT:D|C:AMOUNT[:AUXILIARY_CODE[:LABEL]], repeatable")
}

// proposal resolves journal and auxiliary codes against the tenant.
func (f *proposalFlags) proposal(ctx context.Context, a *app) (journal.Proposal, error) {
	var p journal.Proposal
	tenantID := a.cfg.Tenant.ID

	if f.journal != "" {
		j, err := a.store.GetJournalByCode(ctx, tenantID, f.journal)
		if errors.Is(err, store.ErrNotFound) {
			return p, fmt.Errorf("journal %s: %w", f.journal, journal.ErrJournalNotFound)
		}
		if err != nil {
			return p, err
		}
		p.JournalID = j.ID
	}
	if f.date != "" {
		d, err := model.ParseDate(f.date)
		if err != nil {
			return p, fmt.Errorf("parsing --date: %w", err)
		}
		p.Date = d
	}
	p.Reference = f.reference

	for i, raw := range f.lines {
		in, auxCode, err := parseLineFlag(raw)
		if err != nil {
			return p, fmt.Errorf("--line %q: %w", raw, err)
		}
		in.LineNumber = i + 1
		if auxCode != "" {
			aux, ok, err := a.accounts.AuxiliaryByCode(ctx, tenantID, auxCode)
			if err != nil {
				return p, err
			}
			if !ok {
				return p, fmt.Errorf("--line %q: unknown auxiliary %s", raw, auxCode)
			}
			in.AuxiliaryID = aux.ID
		}
		p.Lines = append(p.Lines, in)
	}
	return p, nil
}

// parseLineFlag parses ACCOUNT:D|C:AMOUNT[:AUXILIARY_CODE[:LABEL]].
func parseLineFlag(raw string) (journal.LineInput, string, error) {
	parts := strings.SplitN(raw, ":", 5)
	if len(parts) < 3 {
		return journal.LineInput{}, "", errors.New("want ACCOUNT:D|C:AMOUNT[:AUXILIARY_CODE[:LABEL]]")
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return journal.LineInput{}, "", fmt.Errorf("parsing amount: %w", err)
	}

	in := journal.LineInput{AccountCode: parts[0]}
	switch strings.ToUpper(parts[1]) {
	case "D", "DEBIT":
		in.Debit = amount
	case "C", "CREDIT":
		in.Credit = amount
	default:
		return journal.LineInput{}, "", fmt.Errorf("side %q: want D or C", parts[1])
	}

	var auxCode string
	if len(parts) > 3 {
		auxCode = parts[3]
	}
	if len(parts) > 4 {
		in.Label = parts[4]
	}
	return in, auxCode, nil
}

func newPiecePostCommand(g *globalFlags) *cobra.Command {
	var f proposalFlags
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a new piece",
		Example: `  piecebook piece post -j ACH -d 2026-01-05 -r FA-118 \
    -l 600000:D:1000 -l 401000:C:1000:F001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(a *app) error {
				p, err := f.proposal(cmd.Context(), a)
				if err != nil {
					return err
				}
				out, err := a.journals.Post(cmd.Context(), a.actor(g.actorID), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s %s (%s)\n", f.journal, out.PieceNumber, out.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("journal")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newPieceUpdateCommand(g *globalFlags) *cobra.Command {
	var f proposalFlags
	cmd := &cobra.Command{
		Use:   "update <piece-id>",
		Short: "Replace the date, reference and lines of a piece",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				p, err := f.proposal(cmd.Context(), a)
				if err != nil {
					return err
				}
				out, err := a.journals.Update(cmd.Context(), a.actor(g.actorID), args[0], p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated piece %s dated %s\n", out.PieceNumber, out.DateString())
				return nil
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newPieceDeleteCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <piece-id>",
		Short: "Delete a piece and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.journals.Delete(cmd.Context(), a.actor(g.actorID), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted piece %s\n", args[0])
				return nil
			})
		},
	}
}

func newPieceShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <piece-id>",
		Short: "Print a piece with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				p, err := a.journals.GetPiece(cmd.Context(), a.actor(g.actorID), args[0])
				if err != nil {
					return err
				}
				return printPiece(cmd.OutOrStdout(), p)
			})
		},
	}
}

func printPiece(w io.Writer, p *model.PieceWithLines) error {
	fmt.Fprintf(w, "Piece %s  %s  %s\n", p.PieceNumber, p.DateString(), p.Reference)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tACCOUNT\tLABEL\tDEBIT\tCREDIT")
	for _, l := range p.Lines {
		debit, credit := l.Amount.Columns()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.LineNumber, l.AccountCode, l.Label,
			blankZero(debit), blankZero(credit))
	}
	return tw.Flush()
}

// blankZero shows at least two decimals and never drops stored precision.
func blankZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(max(2, -d.Exponent()))
}

func newPieceListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <journal-code>",
		Short: "List the pieces of a journal in number order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				j, err := a.store.GetJournalByCode(cmd.Context(), a.cfg.Tenant.ID, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("journal %s: %w", args[0], journal.ErrJournalNotFound)
				}
				if err != nil {
					return err
				}
				pieces, err := a.journals.ListPieces(cmd.Context(), a.actor(g.actorID), j.ID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMBER\tDATE\tREFERENCE\tID")
				for _, p := range pieces {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.PieceNumber, p.DateString(), p.Reference, p.ID)
				}
				return tw.Flush()
			})
		},
	}
}

func newPieceImportCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Post every piece of a CSV file, stopping at the first rejection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			pieces, err := journal.ReadPieces(f)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(a *app) error {
				posted, err := a.journals.Import(cmd.Context(), a.actor(g.actorID), pieces)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d pieces\n", len(posted), len(pieces))
				return err
			})
		},
	}
}

func newPieceImportBankCommand(g *globalFlags) *cobra.Command {
	var (
		format  string
		post    importer.Posting
		auxCode string
	)
	cmd := &cobra.Command{
		Use:   "import-bank <statement.csv>",
		Short: "Post a bank statement to the bank journal, one piece per row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := importer.DefaultRegistry()
			parser := registry.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown statement format %q (known: %s)", format, strings.Join(registry.Formats(), ", "))
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			txns, err := parser.Parse(f)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(a *app) error {
				if auxCode != "" {
					aux, ok, err := a.accounts.AuxiliaryByCode(cmd.Context(), a.cfg.Tenant.ID, auxCode)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("unknown auxiliary %s", auxCode)
					}
					post.CounterpartAux = aux.ID
				}
				pieces := importer.Pieces(txns, post)
				posted, err := a.journals.Import(cmd.Context(), a.actor(g.actorID), pieces)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d statement lines\n", len(posted), len(pieces))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", importer.Standard.Format(), "statement format")
	cmd.Flags().StringVarP(&post.JournalCode, "journal", "j", "BNQ", "bank journal code")
	cmd.Flags().StringVar(&post.BankAccount, "bank-account", "512000", "bank account code")
	cmd.Flags().StringVar(&post.CounterpartAccount, "counterpart", "581000", "counterpart account code")
	cmd.Flags().StringVar(&auxCode, "counterpart-auxiliary", "", "auxiliary code when the counterpart requires one")
	return cmd
}

func newPieceExportCommand(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <journal-code>",
		Short: "Write a journal's pieces as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				pieces, err := a.journals.ExportJournal(cmd.Context(), a.actor(g.actorID), args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return journal.WritePieces(w, args[0], pieces)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// writeOutput sends write to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

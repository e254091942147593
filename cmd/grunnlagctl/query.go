package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grunnlag/internal/app"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	liststrings "grunnlag/pkg/platform/strings"
)

func newProjectionCmd() *cobra.Command {
	var applicant string

	cmd := &cobra.Command{
		Use:   "projection <case-id>",
		Short: "Print the current grunnlag of a case as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := domain.ParseCaseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				var g models.Grunnlag
				if applicant != "" {
					person, perr := domain.ParsePersonID(applicant)
					if perr != nil {
						return perr
					}
					g, err = a.Projections.ProjectionFor(ctx, caseID, person)
				} else {
					g, err = a.Projections.ProjectionForCase(ctx, caseID)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), g)
			})
		},
	}

	cmd.Flags().StringVar(&applicant, "applicant", "", "Applicant person id (default: from the roster)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		types  []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history <case-id>",
		Short: "List every ledger row of a case, superseded rows included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := domain.ParseCaseID(args[0])
			if err != nil {
				return err
			}
			factTypes := liststrings.Normalize[models.FactType](types, strings.ToUpper)
			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				events, err := a.Ledger.EventsFor(ctx, caseID, factTypes...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), events)
				}
				return writeHistory(cmd.OutOrStdout(), events)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Only these fact types (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeHistory(w io.Writer, events []models.FactEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tPERSON\tPERIOD\tSOURCE\tCAPTURED")
	for _, ev := range events {
		f := ev.Fact
		person := string(f.PersonID)
		if person == "" {
			person = "-"
		}
		period := "-"
		if f.Period != nil {
			period = f.Period.From.String() + ".."
			if f.Period.To != nil {
				period += f.Period.To.String()
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.SequenceNumber, f.Type, person, period, f.Source.Kind,
			f.Source.CapturedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return tw.Flush()
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Without arguments, list the most recent runs. With a run ID, show
the facts and inference chain of that run. Requires a database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.store == nil {
				return fmt.Errorf("history needs a database (--db): %w", internalerr.ErrStoreUnavailable)
			}

			if len(args) == 1 {
				run, err := e.store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				a.printRun(run)
				return nil
			}

			runs, err := e.store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tRESULT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Mode, runResult(r))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func runResult(r store.Run) string {
	if r.Mode == "backward" {
		if r.Proved {
			return "proved " + r.Goal
		}
		return "not proved " + r.Goal
	}
	return fmt.Sprintf("%s after %d pass(es)", r.Termination, r.Passes)
}

func (a *app) printRun(r store.Run) {
	fmt.Fprintf(a.out, "Run %s (%s) at %s: %s\n", r.ID, r.Mode, r.StartedAt.Local().Format(time.DateTime), runResult(r))
	if len(r.Entries) > 0 {
		fmt.Fprintln(a.out, "\nInference:")
		for i, e := range r.Entries {
			fmt.Fprintf(a.out, "%d. [rule %d] %s\n   => %s\n", i+1, e.RuleIndex+1, e.Rule, e.Fact)
		}
	}
	fmt.Fprintln(a.out, "\nFacts:")
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tVALUE\tSOURCE")
	for _, f := range r.Facts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Attribute, f.Value, f.Provenance)
	}
	tw.Flush()
}

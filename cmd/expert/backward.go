package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/expert/pkg/expert/inference"
	"github.com/cognicore/expert/pkg/expert/rules"
)

// declineWords end a question without supplying a value.
var declineWords = map[string]struct{}{
	"нет":  {},
	"no":   {},
	"skip": {},
}

func newBackwardCmd(a *app) *cobra.Command {
	var given []string

	cmd := &cobra.Command{
		Use:   "backward <attr=value>",
		Short: "Try to prove a goal, asking for missing facts",
		Long: `Run backward chaining from the goal. Attributes that no rule
concludes are asked on the terminal; an empty answer, "нет", "no"
or "skip" declines.

Examples:
  expert backward -r rules.txt включить_отопление=да
  expert backward -c session.yaml --fact температура=низкая включить_отопление=да`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := rules.ParseCondition(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := supplyAll(e.session, given); err != nil {
				return err
			}

			res, err := e.session.Backward(ctx, goal, inference.AskFunc(a.ask))
			if err != nil {
				return err
			}

			if res.Proved {
				fmt.Fprintf(a.out, "PROVED: %s\n", goal)
			} else {
				fmt.Fprintf(a.out, "NOT PROVED: %s\n", goal)
			}
			if res.DepthExceeded {
				fmt.Fprintln(a.out, "Recursion depth limit reached; the rule set may be cyclic.")
			}

			if log := e.session.Log(); len(log) > 0 {
				fmt.Fprintln(a.out, "\nInference:")
				printLog(a.out, log)
			}
			fmt.Fprintln(a.out, "\nFacts:")
			printFacts(a.out, e.session.Facts())
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&given, "fact", "f", nil, "Known fact as attr=value (repeatable)")
	return cmd
}

// ask prompts for an attribute's value on the terminal.
func (a *app) ask(ctx context.Context, attr string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	fmt.Fprintf(a.out, "Value of %s? ", attr)
	line, err := a.readLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(a.out)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if line == "" {
		return "", false, nil
	}
	if _, ok := declineWords[strings.ToLower(line)]; ok {
		return "", false, nil
	}
	return line, true, nil
}

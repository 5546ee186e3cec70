package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/expert/pkg/expert"
	"github.com/cognicore/expert/pkg/expert/internalerr"
)

func newForwardCmd(a *app) *cobra.Command {
	var (
		given       []string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Derive every conclusion reachable from the facts",
		Long: `Run forward chaining over the configured facts plus any --fact
flags until no rule adds a new fact or the iteration cap is hit.

With --interactive, after each run you may enter another fact as
attr=value (or "stop") and chaining continues from there.

Examples:
  expert forward -r rules.txt --fact время_суток=вечер --fact присутствие_людей=да
  expert forward -c session.yaml --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := supplyAll(e.session, given); err != nil {
				return err
			}

			for {
				res, err := e.session.Forward(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Forward chaining: %d new fact(s) in %d pass(es), stopped at %s.\n",
					len(res.Fired), res.Passes, res.Termination)

				if !interactive {
					break
				}
				more, err := a.promptFact(e.session)
				if err != nil {
					return err
				}
				if !more {
					break
				}
			}

			if log := e.session.Log(); len(log) > 0 {
				fmt.Fprintln(a.out, "\nInference:")
				printLog(a.out, log)
			}
			fmt.Fprintln(a.out, "\nFacts:")
			printFacts(a.out, e.session.Facts())
			printRecommendations(a.out, e.session.Recommendations(e.cfg.Categories))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&given, "fact", "f", nil, "Initial fact as attr=value (repeatable)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for more facts between runs")
	return cmd
}

// promptFact asks for one more fact. It reports false on "stop" or end of input.
func (a *app) promptFact(s *expert.Session) (bool, error) {
	for {
		fmt.Fprint(a.out, "Add a fact (attr=value) or \"stop\": ")
		line, err := a.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if line == "" || strings.EqualFold(line, "stop") {
			return false, nil
		}

		attr, value, ok := splitFact(line)
		if !ok || s.Supply(attr, value) != nil {
			fmt.Fprintf(a.out, "Expected attr=value, got %q.\n", line)
			continue
		}
		return true, nil
	}
}

func supplyAll(s *expert.Session, pairs []string) error {
	for _, p := range pairs {
		attr, value, ok := splitFact(p)
		if !ok {
			return fmt.Errorf("%w: expected attr=value, got %q", internalerr.ErrInvalidInput, p)
		}
		if err := s.Supply(attr, value); err != nil {
			return err
		}
	}
	return nil
}

// splitFact splits "attr=value" at the first '='. The value keeps any
// further '=' signs.
func splitFact(s string) (attr, value string, ok bool) {
	attr, value, ok = strings.Cut(s, "=")
	attr, value = strings.TrimSpace(attr), strings.TrimSpace(value)
	return attr, value, ok && attr != "" && value != ""
}

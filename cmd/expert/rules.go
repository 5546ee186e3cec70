package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/expert/pkg/expert/ruleio"
	"github.com/cognicore/expert/pkg/expert/rules"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, edit, import and export rules",
		Long: `Manage the rule set. With --db (or db: in the session file) edits
are saved to the database and reused by later runs.`,
	}
	cmd.AddCommand(
		newRulesListCmd(a),
		newRulesAddCmd(a),
		newRulesRemoveCmd(a),
		newRulesImportCmd(a),
		newRulesExportCmd(a),
	)
	return cmd
}

func newRulesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show rules in declaration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			set := e.session.Rules()
			if set.Len() == 0 {
				fmt.Fprintln(a.out, "No rules.")
				return nil
			}
			for i, text := range set.Texts() {
				fmt.Fprintf(a.out, "%3d. %s\n", i+1, text)
			}
			return nil
		},
	}
}

func newRulesAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <rule>",
		Short: "Append a rule",
		Example: `  expert rules add --db expert.db "IF дым=да THEN пожарная_тревога=да"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.editable(); err != nil {
				return err
			}
			a.warnEphemeral(e)

			r, err := e.session.AddRule(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added rule %d: %s\n", e.session.Rules().Len(), r)
			return nil
		},
	}
}

func newRulesRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <number>",
		Short: "Remove a rule by its number in `rules list`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("rule number: %w", err)
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.editable(); err != nil {
				return err
			}
			a.warnEphemeral(e)

			r, err := e.session.RemoveRule(cmd.Context(), n-1)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed rule %d: %s\n", n, r)
			return nil
		},
	}
}

func newRulesImportCmd(a *app) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Append rules from a file or web page",
		Long: `Append every valid rule from a text file or an http(s) URL.
HTML pages contribute the contents of their <pre> and <code> blocks.
Malformed lines are reported and skipped. With --replace the imported
rules replace the whole rule set instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := ruleio.Load(ctx, nil, args[0])
			if err != nil {
				return err
			}

			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if !replace {
				if err := e.editable(); err != nil {
					return err
				}
			}
			a.warnEphemeral(e)

			var report rules.Report
			if replace {
				var set rules.Set
				set, report = rules.ParseText(text)
				err = e.session.ReplaceRules(ctx, set)
			} else {
				report, err = e.session.ImportRules(ctx, text)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d rule(s), skipped %d line(s), %d error(s).\n",
				report.Loaded, report.Skipped, report.Failed())
			for _, pe := range report.Errors {
				fmt.Fprintf(a.out, "  %s\n", pe)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the rule set instead of appending")
	return cmd
}

func newRulesExportCmd(a *app) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "export <file|->",
		Short: "Write the rule set in the rules file format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			exp := &ruleio.Exporter{Title: title, Writer: ruleio.FileWriter{Path: args[0]}}
			if args[0] == "-" {
				exp.Writer = streamWriter{w: a.out}
			}
			set := e.session.Rules()
			if err := exp.Export(cmd.Context(), set); err != nil {
				return err
			}
			if args[0] != "-" {
				fmt.Fprintf(a.out, "Exported %d rule(s) to %s\n", set.Len(), args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Header comment for the exported file")
	return cmd
}

// streamWriter adapts an io.Writer to ruleio.RuleWriter.
type streamWriter struct {
	w io.Writer
}

func (s streamWriter) WriteRules(_ context.Context, content string) error {
	_, err := io.WriteString(s.w, content)
	return err
}

func (a *app) warnEphemeral(e *env) {
	if e.store == nil {
		a.logger.Warn("no database configured; rule changes last for this command only",
			zap.String("hint", "pass --db"))
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cognicore/expert/pkg/expert"
	"github.com/cognicore/expert/pkg/expert/facts"
	"github.com/cognicore/expert/pkg/expert/inference"
)

func printFacts(w io.Writer, fs []facts.Fact) {
	if len(fs) == 0 {
		fmt.Fprintln(w, "No facts.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tVALUE\tSOURCE")
	for _, f := range fs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Attribute, f.Value, f.Provenance)
	}
	tw.Flush()
}

func printLog(w io.Writer, entries []inference.Entry) {
	for i, e := range entries {
		fmt.Fprintf(w, "%d. [rule %d] %s\n   => %s\n", i+1, e.RuleIndex+1, e.Rule, e.Fact)
	}
}

func printRecommendations(w io.Writer, recs []expert.Recommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecommendations:")
	for _, rec := range recs {
		fmt.Fprintf(w, "  %s:\n", rec.Category)
		for _, f := range rec.Facts {
			fmt.Fprintf(w, "    - %s = %s\n", f.Attribute, f.Value)
		}
	}
}

// readLine returns the next trimmed input line. io.EOF is returned only
// when no input at all remains.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

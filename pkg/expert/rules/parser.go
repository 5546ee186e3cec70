package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cognicore/expert/pkg/expert/internalerr"
)

// ErrSkip is returned by Parse for blank and comment lines.
var ErrSkip = errors.New("skip line")

// CommentPrefix marks a line that is ignored by the parser.
const CommentPrefix = "#"

type keyword int

const (
	kwNone keyword = iota
	kwIf
	kwAnd
	kwThen
)

// Both keyword sets are accepted, case-insensitively.
var keywords = map[keyword][]string{
	kwIf:   {"IF", "ЕСЛИ"},
	kwAnd:  {"AND", "И"},
	kwThen: {"THEN", "ТО"},
}

func classify(tok string) keyword {
	for kw, spellings := range keywords {
		for _, s := range spellings {
			if strings.EqualFold(tok, s) {
				return kw
			}
		}
	}
	return kwNone
}

// ParseError describes a line that could not be turned into a rule.
type ParseError struct {
	Line   int // 1-based; zero when parsing a single line
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error { return internalerr.ErrInvalidRule }

// Normalize collapses internal whitespace to single spaces and trims the line.
func Normalize(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// Parse turns one line of rule text into a Rule.
//
// Format:
//
//	IF a=1 AND b=2 THEN c=3
//	ЕСЛИ a=1 И b=2 ТО c=3
//	# comments
func Parse(line string) (Rule, error) {
	text := Normalize(line)
	if text == "" || strings.HasPrefix(text, CommentPrefix) {
		return Rule{}, ErrSkip
	}

	fail := func(reason string) (Rule, error) {
		return Rule{}, &ParseError{Text: text, Reason: reason}
	}

	tokens := strings.Split(text, " ")
	if classify(tokens[0]) != kwIf {
		return fail("missing IF")
	}

	thenAt := -1
	for i := 1; i < len(tokens); i++ {
		if classify(tokens[i]) == kwThen {
			thenAt = i
			break
		}
	}
	if thenAt == -1 {
		return fail("missing THEN")
	}

	var conditions []Condition
	var clause []string
	flush := func() bool {
		if len(clause) == 0 {
			return false
		}
		c, ok := parseClause(clause)
		if !ok {
			return false
		}
		conditions = append(conditions, c)
		clause = clause[:0]
		return true
	}

	if thenAt == 1 {
		return fail("no conditions")
	}
	for _, tok := range tokens[1:thenAt] {
		switch classify(tok) {
		case kwAnd:
			if !flush() {
				return fail("malformed condition")
			}
		case kwNone:
			clause = append(clause, tok)
		default:
			return fail("unexpected keyword " + tok)
		}
	}
	if !flush() {
		return fail("malformed condition")
	}

	rest := tokens[thenAt+1:]
	for _, tok := range rest {
		if classify(tok) != kwNone {
			return fail("conclusion must be a single attr=value")
		}
	}
	conclusion, ok := parseClause(rest)
	if !ok {
		return fail("malformed conclusion")
	}

	r, err := New(conditions, conclusion, text)
	if err != nil {
		return fail(err.Error())
	}
	return r, nil
}

// parseClause reads "attr=value" from tokens; spaces around '=' are allowed.
func parseClause(tokens []string) (Condition, bool) {
	s := strings.Join(tokens, " ")
	if strings.Count(s, "=") != 1 {
		return Condition{}, false
	}
	attr, value, _ := strings.Cut(s, "=")
	attr = strings.TrimSpace(attr)
	value = strings.TrimSpace(value)
	if attr == "" || value == "" || strings.Contains(attr, " ") {
		return Condition{}, false
	}
	return Condition{Attribute: attr, Value: value}, true
}

// ParseCondition parses a single "attr=value" term, as used for goals and user answers.
func ParseCondition(s string) (Condition, error) {
	text := Normalize(s)
	c, ok := parseClause(strings.Split(text, " "))
	if !ok {
		return Condition{}, fmt.Errorf("%w: expected attr=value, got %q", internalerr.ErrInvalidInput, s)
	}
	return c, nil
}

// Report summarises a multi-line load.
type Report struct {
	Loaded  int
	Skipped int
	Errors  []*ParseError
}

// Failed is the number of rejected lines.
func (r Report) Failed() int { return len(r.Errors) }

// MaxLineBytes bounds a single rule line. Longer lines are reported, not parsed.
const MaxLineBytes = 1 << 20

// ParseText parses every line of text. Malformed lines are reported and
// left out; they never stop the remaining lines from loading.
func ParseText(text string) (Set, Report) {
	var set Set
	var report Report

	lineNum := 0
	for rest := text; rest != ""; {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		lineNum++

		if len(line) > MaxLineBytes {
			report.Errors = append(report.Errors, &ParseError{
				Line:   lineNum,
				Text:   strings.ToValidUTF8(line[:64], "") + "...",
				Reason: "line too long",
			})
			continue
		}

		r, err := Parse(line)
		if errors.Is(err, ErrSkip) {
			report.Skipped++
			continue
		}
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Line = lineNum
			report.Errors = append(report.Errors, pe)
			continue
		}
		set = set.Add(r)
		report.Loaded++
	}

	return set, report
}

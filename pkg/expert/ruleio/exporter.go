package ruleio

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cognicore/expert/pkg/expert/rules"
)

// RuleWriter persists rendered rule text to a destination (file, DB, etc.).
type RuleWriter interface {
	WriteRules(ctx context.Context, content string) error
}

// Exporter renders a rule set in the line format ParseText reads back.
type Exporter struct {
	Writer RuleWriter
	Title  string
	Now    func() time.Time
}

// Export writes a dated comment header followed by one rule per line.
func (e *Exporter) Export(ctx context.Context, set rules.Set) error {
	if e.Writer == nil {
		return fmt.Errorf("rule exporter: nil writer")
	}
	return e.Writer.WriteRules(ctx, e.Render(set))
}

// Render returns the exported text without writing it.
func (e *Exporter) Render(set rules.Set) string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	title := e.Title
	if title == "" {
		title = "Exported rules"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", rules.CommentPrefix, title)
	fmt.Fprintf(&b, "%s Exported: %s\n\n", rules.CommentPrefix, now().Format("02.01.2006 15:04:05"))
	for _, text := range set.Texts() {
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// FileWriter writes rule text to a file, replacing its contents.
type FileWriter struct {
	Path string
}

// WriteRules implements RuleWriter.
func (w FileWriter) WriteRules(ctx context.Context, content string) error {
	if err := os.WriteFile(w.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}

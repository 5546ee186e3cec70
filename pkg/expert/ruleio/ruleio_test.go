package ruleio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/rules"
)

const rulePage = `<!doctype html>
<html><body>
<h1>Умный дом</h1>
<p>Rules below. IF ignored=1 THEN outside=1</p>
<pre>
# освещение
IF время_суток=вечер AND присутствие_людей=да THEN включить_основное_освещение=да
IF дым=да THEN пожарная_тревога=да
</pre>
<p>Inline: <code>IF утечка_газа=да THEN перекрыть_газ=да</code></p>
<pre><code>IF присутствие_людей=нет THEN режим_экономии_энергии=да</code></pre>
</body></html>`

func TestExtractHTML(t *testing.T) {
	text, err := ExtractHTML(strings.NewReader(rulePage))
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}

	set, report := rules.ParseText(text)
	if report.Failed() != 0 {
		t.Fatalf("unexpected parse failures: %v", report.Errors)
	}

	want := []string{
		"IF время_суток=вечер AND присутствие_людей=да THEN включить_основное_освещение=да",
		"IF дым=да THEN пожарная_тревога=да",
		"IF утечка_газа=да THEN перекрыть_газ=да",
		"IF присутствие_людей=нет THEN режим_экономии_энергии=да",
	}
	if diff := cmp.Diff(want, set.Texts()); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchHTMLAndPlain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, rulePage)
	})
	mux.HandleFunc("/rules.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "IF a=1 THEN b=1\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()

	text, err := Load(ctx, srv.Client(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Load html: %v", err)
	}
	if strings.Contains(text, "ignored=1") {
		t.Error("text outside <pre>/<code> must not be imported")
	}
	if !strings.Contains(text, "перекрыть_газ=да") {
		t.Error("expected <code> content to be imported")
	}

	text, err = Load(ctx, srv.Client(), srv.URL+"/rules.txt")
	if err != nil {
		t.Fatalf("Load plain: %v", err)
	}
	if text != "IF a=1 THEN b=1\n" {
		t.Errorf("unexpected plain text %q", text)
	}

	if _, err := Fetch(ctx, srv.Client(), srv.URL+"/missing"); err == nil {
		t.Error("expected an error for a 404")
	}
}

func TestFetchRejectsOversizedDocument(t *testing.T) {
	padding := "# " + strings.Repeat("x", maxFetchBytes) + "\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/big.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, padding+"IF a=1 THEN b=12345\n")
	})
	mux.HandleFunc("/big.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<pre>"+padding+"IF a=1 THEN b=12345</pre>")
	})
	mux.HandleFunc("/limit.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, strings.Repeat("#", maxFetchBytes-len("\nIF a=1 THEN b=1"))+"\nIF a=1 THEN b=1")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	for _, path := range []string{"/big.txt", "/big.html"} {
		text, err := Fetch(ctx, srv.Client(), srv.URL+path)
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", path, err)
		}
		if text != "" {
			t.Errorf("%s: no partial text may be returned", path)
		}
	}

	text, err := Fetch(ctx, srv.Client(), srv.URL+"/limit.txt")
	if err != nil {
		t.Fatalf("document at the limit should load: %v", err)
	}
	if !strings.HasSuffix(text, "IF a=1 THEN b=1") {
		t.Error("document at the limit must be returned whole")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	if err := os.WriteFile(path, []byte("IF a=1 THEN b=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := Load(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Load file: %v", err)
	}
	if text != "IF a=1 THEN b=1\n" {
		t.Errorf("unexpected text %q", text)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportRoundTrip(t *testing.T) {
	set, _ := rules.ParseText(`
IF время_суток=утро AND присутствие_людей=да THEN включить_новости=да
ЕСЛИ дым=да ТО пожарная_тревога=да
`)
	path := filepath.Join(t.TempDir(), "export.txt")
	exp := &Exporter{
		Writer: FileWriter{Path: path},
		Now:    func() time.Time { return time.Date(2024, 3, 1, 18, 30, 5, 0, time.UTC) },
	}

	if err := exp.Export(context.Background(), set); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Exported rules\n# Exported: 01.03.2024 18:30:05\n\n") {
		t.Errorf("unexpected header:\n%s", data)
	}

	back, report := rules.ParseText(string(data))
	if report.Failed() != 0 || report.Skipped != 3 {
		t.Errorf("unexpected report on re-import: %+v", report)
	}
	if diff := cmp.Diff(set.Texts(), back.Texts()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExportNilWriter(t *testing.T) {
	exp := &Exporter{}
	if err := exp.Export(context.Background(), rules.Set{}); err == nil {
		t.Error("expected error for nil writer")
	}
}

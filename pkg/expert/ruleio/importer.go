package ruleio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/expert/pkg/expert/internalerr"
)

// maxFetchBytes bounds a remote rule document.
const maxFetchBytes = 4 << 20

// ReadFile returns the rule text stored at path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read rules: %w", err)
	}
	return string(data), nil
}

// IsURL reports whether src names an http(s) resource rather than a file.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load reads rule text from a file path or an http(s) URL.
func Load(ctx context.Context, client *http.Client, src string) (string, error) {
	if IsURL(src) {
		return Fetch(ctx, client, src)
	}
	return ReadFile(src)
}

// Fetch downloads rule text. HTML pages are reduced to the contents of
// their <pre> and <code> blocks; anything else is returned as-is. Documents
// larger than maxFetchBytes are rejected whole.
func Fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch rules: %w: %v", internalerr.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "text/plain, text/html;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch rules: %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", fmt.Errorf("fetch rules: %w", err)
	}
	if len(data) > maxFetchBytes {
		return "", fmt.Errorf("fetch rules: %s: rule document too large (over %d bytes): %w",
			url, maxFetchBytes, internalerr.ErrInvalidInput)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return ExtractHTML(bytes.NewReader(data))
	}
	return string(data), nil
}

// ExtractHTML returns the text of every <pre> block and every <code> element
// outside one, each block on its own lines, in document order.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Pre || n.DataAtom == atom.Code) {
			var b strings.Builder
			collectText(n, &b)
			if text := strings.TrimSpace(b.String()); text != "" {
				blocks = append(blocks, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(blocks, "\n"), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.Br {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

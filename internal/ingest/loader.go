package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// LoadDocument reads a policy document from disk and normalizes it to
// markdown-flavored text. Markdown and plain text pass through; HTML
// is parsed and its headings rewritten as markdown headings so the
// splitter can section it.
func LoadDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", "":
		return string(data), nil
	case ".html", ".htm":
		return htmlToText(string(data))
	default:
		return "", fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}
}

// htmlToText flattens an HTML document into text, skipping scripts and
// styles and turning h1-h3 elements into markdown headings.
func htmlToText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "h1", "h2", "h3":
				buf.WriteString("\n\n")
				buf.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
				buf.WriteString(" ")
				buf.WriteString(strings.TrimSpace(nodeText(n)))
				buf.WriteString("\n\n")
				return
			case "p", "li", "tr", "br", "div":
				buf.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String()), nil
}

// nodeText collects the text content beneath a node.
func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var htmlTag = regexp.MustCompile(`(?i)</?(p|div|br|span|a|li|ul|ol|body|html|article|section|h[1-6]|blockquote|strong|em|b|i)\b[^>]*>`)

// blockElements end a line of visible text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "article": true,
	"section": true, "blockquote": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "footer": true,
}

// LooksLikeHTML reports whether s carries markup worth stripping
func LooksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// VisibleText returns the human-visible text of an HTML fragment. Script-like
// elements are skipped; block elements become line breaks.
func VisibleText(fragment string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), nil)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "svg", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] && buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
			buf.WriteByte('\n')
		}
	}

	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(buf.String()), nil
}

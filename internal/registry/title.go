package registry

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Title returns the text of the first <title> element of a registered
// page, or "" when the page has none.
func (r *Registry) Title(path string) (string, error) {
	res := r.Lookup(path)
	if res.Status != StatusFound {
		if res.Err != nil {
			return "", res.Err
		}
		return "", fmt.Errorf("page %q not found", path)
	}
	return ExtractTitle(res.Content)
}

// ExtractTitle returns the text of the first <title> element in content.
func ExtractTitle(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var find func(*html.Node) (string, bool)
	find = func(n *html.Node) (string, bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.TrimSpace(b.String()), true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title, ok := find(c); ok {
				return title, true
			}
		}
		return "", false
	}

	title, _ := find(doc)
	return title, nil
}

package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// textParts collects trimmed, non-empty text nodes under n, skipping scripts
// and styles.
func textParts(n *html.Node, out *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textParts(c, out)
	}
}

// JoinedText joins the text nodes of sel with sep: " " for inline values,
// "\n" for descriptions.
func JoinedText(sel *goquery.Selection, sep string) string {
	if sel == nil {
		return ""
	}
	var parts []string
	for _, n := range sel.Nodes {
		textParts(n, &parts)
	}
	return strings.Join(parts, sep)
}

// findText returns the first text node under n whose content satisfies match.
func findText(n *html.Node, match func(string) bool) *html.Node {
	if n.Type == html.TextNode && match(n.Data) {
		return n
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findText(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findTextAll returns every text node under n whose content satisfies match.
func findTextAll(n *html.Node, match func(string) bool, out *[]*html.Node) {
	if n.Type == html.TextNode && match(n.Data) {
		*out = append(*out, n)
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findTextAll(c, match, out)
	}
}

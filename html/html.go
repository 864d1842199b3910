// Package html extracts titles, anchors, and plain text from fetched pages.
package html

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gohtml "golang.org/x/net/html"
)

// ErrNoTitle is returned when a page has no extractable <title>.
var ErrNoTitle = errors.New("could not locate title")

// ErrNoAnchor is returned when a selector matches no anchor with an href.
var ErrNoAnchor = errors.New("could not locate source link")

// Title returns the text of the document's first <title> element.
func Title(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}

// FirstAnchor returns the href of the first anchor matching the CSS
// selector.
func FirstAnchor(content []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok || href == "" {
		return "", ErrNoAnchor
	}
	return href, nil
}

// Text extracts the visible text of a page for embedding: script and style
// contents are dropped, lines are trimmed, and blank lines removed.
func Text(content []byte) string {
	root, err := gohtml.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*gohtml.Node)
	walk = func(n *gohtml.Node) {
		if n.Type == gohtml.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == gohtml.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

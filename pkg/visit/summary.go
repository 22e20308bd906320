package visit

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Summary is the readable part of a page.
type Summary struct {
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// summarize parses rawHTML and keeps its title, meta description and visible
// text in a single pass. Block elements become line breaks; scripts, styles
// and embedded objects are dropped. Text is cut at maxLength bytes.
func summarize(rawHTML string, maxLength int) (*Summary, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	w := &textWriter{maxLength: maxLength}
	w.walk(doc)

	return &Summary{
		Title:       w.title,
		Description: w.description,
		Text:        strings.TrimSpace(w.builder.String()),
		Truncated:   w.truncated,
	}, nil
}

type textWriter struct {
	builder   strings.Builder
	maxLength int
	truncated bool
	// pendingBreak is set when a block boundary was crossed since the last text
	pendingBreak bool

	title       string
	description string
}

func (w *textWriter) walk(n *html.Node) {
	if n.Type == html.CommentNode {
		return
	}

	if n.Type == html.TextNode {
		if !w.truncated {
			w.writeText(n.Data)
		}
		return
	}

	block := false
	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)
		switch {
		case tag == "title":
			if w.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				w.title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case tag == "meta":
			if w.description == "" {
				w.description = metaDescription(n)
			}
			return
		case isSkippedElement(tag):
			return
		}
		block = isBlockElement(tag) || tag == "br"
	}

	if block {
		w.pendingBreak = true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.pendingBreak = true
	}
}

// writeText appends the collapsed words of data, separated from earlier text
// by a newline after a block boundary and a space otherwise.
func (w *textWriter) writeText(data string) {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return
	}

	if w.builder.Len() > 0 {
		if w.pendingBreak {
			w.builder.WriteString("\n")
		} else {
			w.builder.WriteString(" ")
		}
	}
	w.pendingBreak = false

	if w.builder.Len()+len(text) > w.maxLength {
		remaining := w.maxLength - w.builder.Len()
		for remaining > 0 && !utf8.RuneStart(text[remaining]) {
			remaining--
		}
		if remaining > 0 {
			w.builder.WriteString(text[:remaining])
		}
		w.builder.WriteString("...")
		w.truncated = true
		return
	}
	w.builder.WriteString(text)
}

// isSkippedElement returns true for elements whose content is never shown
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "template":
		return true
	}
	return false
}

// isBlockElement returns true for elements rendered on their own line
func isBlockElement(tagName string) bool {
	switch tagName {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr", "td", "th",
		"form", "fieldset", "blockquote", "pre", "hr":
		return true
	}
	return false
}

// metaDescription returns the trimmed content of a <meta name="description">
// element, or "" for any other meta.
func metaDescription(n *html.Node) string {
	var name, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = attr.Val
		case "content":
			content = attr.Val
		}
	}
	if !strings.EqualFold(name, "description") {
		return ""
	}
	return strings.TrimSpace(content)
}

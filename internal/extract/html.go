package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun    = regexp.MustCompile(`[ \t\f\r\n]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	trailingGap = regexp.MustCompile(` *\n *`)
)

// paragraph elements end with a blank line; line elements with a newline.
var (
	paragraphAtoms = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	}
	lineAtoms = map[atom.Atom]bool{
		atom.Br: true, atom.Li: true, atom.Tr: true, atom.Dt: true, atom.Dd: true,
	}
	skippedAtoms = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Head: true, atom.Noscript: true, atom.Template: true,
	}
)

// extractHTML returns the visible text of an HTML document with block
// structure kept as newlines.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedAtoms[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(spaceRun.ReplaceAllString(n.Data, " "))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch {
			case paragraphAtoms[n.DataAtom]:
				b.WriteString("\n\n")
			case lineAtoms[n.DataAtom]:
				b.WriteString("\n")
			case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
				b.WriteString("\t")
			}
		}
	}
	walk(doc)

	text := trailingGap.ReplaceAllString(b.String(), "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

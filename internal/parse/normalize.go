package parse

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Flatten strips Markdown and stray HTML markup from a section value,
// keeping plain prose. Model replies frequently arrive with headings,
// emphasis markers or tag fragments the reply format did not ask for;
// the document template supplies all formatting, so only the text
// survives. Paragraph boundaries are preserved as blank lines.
func Flatten(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		s = stripHTML(s)
	}
	if looksLikeMarkdown(s) {
		s = flattenMarkdown(s)
	}
	return strings.TrimSpace(s)
}

// Deliberately narrow: hyphen bullets and bracketed asides occur in
// ordinary prose, so only unambiguous markers trigger a rewrite.
var markdownMarkers = []string{"# ", "## ", "### ", "**", "```"}

func looksLikeMarkdown(s string) bool {
	for _, m := range markdownMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func flattenMarkdown(s string) string {
	src := []byte(s)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(src))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if t := nodeText(n, src); t != "" {
			blocks = append(blocks, t)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// nodeText collects the inline text of a goldmark AST node.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.AutoLink:
			buf.Write(t.URL(src))
		default:
			if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					line := lines.At(i)
					buf.Write(line.Value(src))
				}
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
			if _, ok := c.(*ast.ListItem); ok {
				buf.WriteByte('\n')
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

// stripHTML drops tags and keeps text content, skipping script/style
// bodies entirely.
func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				buf.WriteByte('\n')
			}
		}
	}
	walk(doc)
	return buf.String()
}

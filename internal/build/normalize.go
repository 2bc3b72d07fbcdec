package build

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bonzini/db4sphinx/internal/docmodel"
)

// collapseWhitespace reduces every run of XML whitespace to a single
// space, keeping one leading/trailing space so inline boundaries survive
// ("foo <emphasis>bar</emphasis> baz").
func collapseWhitespace(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		if inSpace && b.Len() == 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	if inSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

// normalizeText applies NFC so character references decoded by the XML
// parser compare equal regardless of their source composition.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}

// containerKinds hold block children only. Text between those children
// is chunker indentation, never content, and is dropped outright.
var containerKinds = map[docmodel.Kind]bool{
	docmodel.KindDocument:   true,
	docmodel.KindSection:    true,
	docmodel.KindList:       true,
	docmodel.KindListItem:   true,
	docmodel.KindDefinition: true,
	docmodel.KindAdmonition: true,
	docmodel.KindQuote:      true,
	docmodel.KindTable:      true,
	docmodel.KindTableRow:   true,
	docmodel.KindFigure:     true,
}

// inlineKinds hold mixed content; only their edges are trimmed, interior
// spacing is meaningful.
var inlineKinds = map[docmodel.Kind]bool{
	docmodel.KindParagraph: true,
	docmodel.KindTitle:     true,
	docmodel.KindTerm:      true,
	docmodel.KindTableCell: true,
}

// normalizeTree strips layout whitespace from block containers, trims the
// edges of mixed-content blocks and drops text runs that collapsed to
// nothing. Verbatim subtrees are left exactly as parsed.
func normalizeTree(root *docmodel.Node) {
	root.Walk(func(n *docmodel.Node) bool {
		if n.Kind == docmodel.KindVerbatim {
			return false
		}
		switch {
		case containerKinds[n.Kind]:
			n.Children = dropLayoutText(n.Children)
		case inlineKinds[n.Kind]:
			trimEdges(n)
			n.Children = dropEmptyText(n.Children)
		}
		return true
	})
}

func trimEdges(n *docmodel.Node) {
	if len(n.Children) == 0 {
		return
	}
	if first := n.Children[0]; first.Kind == docmodel.KindText {
		first.Text = strings.TrimLeft(first.Text, " ")
	}
	if last := n.Children[len(n.Children)-1]; last.Kind == docmodel.KindText {
		last.Text = strings.TrimRight(last.Text, " ")
	}
}

func dropLayoutText(children []*docmodel.Node) []*docmodel.Node {
	out := children[:0]
	for _, c := range children {
		if c.Kind == docmodel.KindText && strings.TrimSpace(c.Text) == "" {
			c.Parent = nil
			continue
		}
		out = append(out, c)
	}
	return out
}

func dropEmptyText(children []*docmodel.Node) []*docmodel.Node {
	out := children[:0]
	for _, c := range children {
		if c.Kind == docmodel.KindText && c.Text == "" {
			c.Parent = nil
			continue
		}
		out = append(out, c)
	}
	return out
}

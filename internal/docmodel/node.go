// Package docmodel defines the abstract document tree produced from
// DocBook topic files. Nodes form a strict tree: every node except the
// root has exactly one owning parent.
package docmodel

// Kind discriminates the node variants.
type Kind int

const (
	// KindDocument is the synthetic root of one topic file.
	KindDocument Kind = iota
	// KindSection is a titled division with a nesting level.
	KindSection
	// KindTitle is a section title or, with RoleCaption, a table/figure caption.
	KindTitle
	// KindParagraph is a block of flowing text.
	KindParagraph
	// KindList is an itemized, ordered or definition list.
	KindList
	// KindListItem is one entry of a list.
	KindListItem
	// KindTerm is the term part of a definition-list entry.
	KindTerm
	// KindDefinition is the body part of a definition-list entry.
	KindDefinition
	// KindTable is a table container.
	KindTable
	// KindTableRow is one row of a table.
	KindTableRow
	// KindTableCell is one cell of a table row.
	KindTableCell
	// KindFigure is a figure or media container.
	KindFigure
	// KindAdmonition is a note/tip/warning/caution/important block.
	KindAdmonition
	// KindVerbatim is a literal block whose whitespace is preserved exactly.
	KindVerbatim
	// KindQuote is a block quotation.
	KindQuote
	// KindInline is inline markup wrapping its children with a role.
	KindInline
	// KindText is a leaf text run.
	KindText
	// KindCrossReference points at a declared id, resolved after all files build.
	KindCrossReference
	// KindExternalLink points at a URI and needs no registry resolution.
	KindExternalLink
	// KindPassthrough preserves an unrecognized element losslessly.
	KindPassthrough
	// KindBrokenTopic substitutes for a topic file that could not be built.
	KindBrokenTopic
)

// String returns the lowercase kind name used in logs and test failures.
func (k Kind) String() string {
	names := map[Kind]string{
		KindDocument:       "document",
		KindSection:        "section",
		KindTitle:          "title",
		KindParagraph:      "paragraph",
		KindList:           "list",
		KindListItem:       "listitem",
		KindTerm:           "term",
		KindDefinition:     "definition",
		KindTable:          "table",
		KindTableRow:       "tablerow",
		KindTableCell:      "tablecell",
		KindFigure:         "figure",
		KindAdmonition:     "admonition",
		KindVerbatim:       "verbatim",
		KindQuote:          "quote",
		KindInline:         "inline",
		KindText:           "text",
		KindCrossReference: "xref",
		KindExternalLink:   "link",
		KindPassthrough:    "passthrough",
		KindBrokenTopic:    "broken-topic",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown"
}

// Inline roles carried by KindInline nodes.
const (
	RoleEmphasis    = "emphasis"
	RoleStrong      = "strong"
	RoleLiteral     = "literal"
	RoleSubscript   = "subscript"
	RoleSuperscript = "superscript"
	RoleFile        = "file"
	RoleCommand     = "command"
	RoleOption      = "option"
	RoleEnvVar      = "env"
	RoleKeyboard    = "kbd"
	RoleProgram     = "program"
	RoleDefinition  = "dfn"
	RoleMath        = "math"
	RoleCaption     = "caption"
)

// Enumeration styles for ordered lists.
const (
	EnumArabic     = "arabic"
	EnumLowerAlpha = "loweralpha"
)

// Ref is a resolved cross-reference target: the owning file plus the node
// itself, never a copy.
type Ref struct {
	File string
	Node *Node
}

// Node is one node of the abstract document tree. Fields beyond Kind,
// Parent and Children are meaningful only for the kinds noted.
type Node struct {
	Kind     Kind
	Parent   *Node
	Children []*Node

	// ID is the declared id registered for cross-referencing.
	// IDs carries additional anchor ids attached to this node.
	ID  string
	IDs []string

	// Line is the 1-based source line the node was built from.
	Line int

	// Text holds the content of KindText leaves and the raw content of
	// KindVerbatim and KindPassthrough nodes.
	Text string

	// Level is the section nesting level (KindSection).
	Level int

	// Role qualifies KindInline and caption-role KindTitle nodes.
	Role string

	// Flavor names the admonition variant (KindAdmonition): note, tip,
	// warning, caution or important.
	Flavor string

	// Ordered, Enumeration and Definition describe KindList nodes.
	Ordered     bool
	Enumeration string
	Definition  bool

	// TargetID and Target belong to KindCrossReference; Target stays nil
	// until the finalize pass runs. Href belongs to KindExternalLink.
	TargetID string
	Target   *Ref
	Href     string

	// OrigSpace, OrigName and OrigAttrs preserve the source element of a
	// KindPassthrough node for round-trip fidelity. Path names the
	// unreadable file of a KindBrokenTopic node.
	OrigSpace string
	OrigName  string
	OrigAttrs map[string]string
	Path      string
}

// NewNode creates a parentless node of the given kind.
func NewNode(kind Kind) *Node {
	return &Node{Kind: kind}
}

// Append attaches child to n, enforcing single ownership.
func (n *Node) Append(child *Node) *Node {
	if child.Parent != nil {
		panic("docmodel: node already has a parent")
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	return child
}

// AppendText adds a text leaf unless s is empty.
func (n *Node) AppendText(s string) {
	if s == "" {
		return
	}
	n.Append(&Node{Kind: KindText, Text: s})
}

// PlainText flattens the subtree's text content in document order.
func (n *Node) PlainText() string {
	var b []byte
	n.Walk(func(m *Node) bool {
		if m.Kind == KindText || m.Kind == KindVerbatim {
			b = append(b, m.Text...)
		}
		return true
	})
	return string(b)
}

// Walk visits the subtree rooted at n in document order using an explicit
// stack, so arbitrarily deep trees cannot exhaust the call stack. The
// visitor returns false to skip a node's children.
func (n *Node) Walk(visit func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// FirstTitle returns the text of the first title node in the subtree, or "".
func (n *Node) FirstTitle() string {
	title := ""
	n.Walk(func(m *Node) bool {
		if title != "" {
			return false
		}
		if m.Kind == KindTitle && m.Role != RoleCaption {
			title = m.PlainText()
			return false
		}
		return true
	})
	return title
}

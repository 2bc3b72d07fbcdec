// Package build walks one parsed element tree and produces the abstract
// document tree for that file, registering declared ids and queueing
// cross-references along the way. A build never fails once the XML has
// parsed: anything the mapping table cannot place degrades to a
// passthrough node plus a recorded warning.
package build

import (
	"log/slog"

	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/docmodel"
	"github.com/bonzini/db4sphinx/internal/mapping"
	"github.com/bonzini/db4sphinx/internal/refs"
	"github.com/bonzini/db4sphinx/internal/xmltree"
)

// PassthroughPolicy controls what happens to unrecognized elements.
type PassthroughPolicy string

const (
	// PassthroughPreserve keeps unknown elements losslessly (the default).
	PassthroughPreserve PassthroughPolicy = "preserve"
	// PassthroughDrop records the warning but emits no node.
	PassthroughDrop PassthroughPolicy = "drop"
)

// Builder converts element trees into document trees. A Builder is
// stateless across files and safe for concurrent use; per-file state
// lives in the build run.
type Builder struct {
	table       *mapping.Table
	passthrough PassthroughPolicy
}

// Option configures a Builder.
type Option func(*Builder)

// WithPassthroughPolicy overrides the unknown-element policy.
func WithPassthroughPolicy(p PassthroughPolicy) Option {
	return func(b *Builder) {
		if p == PassthroughDrop {
			b.passthrough = p
		}
	}
}

// New creates a Builder dispatching through table.
func New(table *mapping.Table, opts ...Option) *Builder {
	b := &Builder{table: table, passthrough: PassthroughPreserve}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// run is the per-file build state.
type run struct {
	b        *Builder
	path     string
	registry *refs.IDRegistry
	queue    *refs.XrefQueue
	diags    *diag.Collector

	// idAttr resolves the id attribute for the document's dialect:
	// xml:id for DocBook 5, plain id for DocBook 4.
	docbook5 bool

	// anchors collected from <anchor/> elements, attached to the next
	// constructed node.
	anchors []string

	// warned suppresses repeated unsupported-element warnings per tag.
	warned map[string]bool
}

// frame is one unit of work on the explicit traversal stack.
type frame struct {
	el        *xmltree.Element
	text      string
	textLine  int
	parent    *docmodel.Node
	ancestors []string
	// secLevel is the level of the nearest enclosing section, -1 outside any.
	secLevel int
	// verbatim marks frames inside literal blocks; their text is kept exactly.
	verbatim bool
	// orderedDepth counts enclosing ordered lists for enumeration style.
	orderedDepth int
}

// Build produces the document tree for one file. registry and queue are
// the assembly-wide shared state; diags receives recoverable conditions.
func (b *Builder) Build(root *xmltree.Element, path string, registry *refs.IDRegistry, queue *refs.XrefQueue, diags *diag.Collector) *docmodel.Document {
	r := &run{
		b:        b,
		path:     path,
		registry: registry,
		queue:    queue,
		diags:    diags,
		docbook5: root.Space == mapping.DocBook5Namespace,
		warned:   make(map[string]bool),
	}

	doc := docmodel.NewDocument(path)
	r.walk(root, doc.Root)
	normalizeTree(doc.Root)
	return doc
}

// walk traverses the element tree with an explicit stack, bounding depth
// by heap rather than call stack.
func (r *run) walk(root *xmltree.Element, docRoot *docmodel.Node) {
	stack := []frame{{el: root, parent: docRoot, secLevel: -1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.el == nil {
			r.emitText(f)
			continue
		}
		stack = r.element(f, stack)
	}
}

// element processes one element frame and returns the stack with any
// child frames pushed (in reverse, so document order is preserved).
func (r *run) element(f frame, stack []frame) []frame {
	rule, known := r.b.table.Resolve(f.el.Space, f.el.Name, f.ancestors)
	if !known {
		return r.passthrough(f, stack)
	}

	switch rule.Action {
	case mapping.ActionSkip:
		return stack

	case mapping.ActionAnchor:
		if id := r.idOf(f.el); id != "" {
			r.anchors = append(r.anchors, id)
		}
		return stack

	case mapping.ActionTransparent:
		return r.pushChildren(f, f.parent, stack, f.secLevel, f.verbatim, f.orderedDepth)

	case mapping.ActionXref:
		r.xref(f)
		return stack

	case mapping.ActionLink:
		return r.link(f, stack)

	case mapping.ActionSection:
		level := sectionLevel(rule.Level, f.secLevel)
		node := r.newNode(f.el, docmodel.KindSection)
		node.Level = level
		f.parent.Append(node)
		return r.pushChildren(f, node, stack, level, false, f.orderedDepth)

	case mapping.ActionTitle:
		node := r.newNode(f.el, docmodel.KindTitle)
		node.Role = rule.Role
		f.parent.Append(node)
		return r.pushChildren(f, node, stack, f.secLevel, false, f.orderedDepth)

	case mapping.ActionVerbatim:
		node := r.newNode(f.el, rule.Kind)
		node.Role = rule.Role
		f.parent.Append(node)
		return r.pushChildren(f, node, stack, f.secLevel, true, f.orderedDepth)

	case mapping.ActionInline:
		node := r.newNode(f.el, docmodel.KindInline)
		node.Role = rule.Role
		// DocBook marks strong emphasis with a role attribute rather
		// than a separate element.
		if node.Role == docmodel.RoleEmphasis && isStrong(f.el) {
			node.Role = docmodel.RoleStrong
		}
		f.parent.Append(node)
		return r.pushChildren(f, node, stack, f.secLevel, f.verbatim, f.orderedDepth)

	default: // ActionBlock
		node := r.newNode(f.el, rule.Kind)
		node.Flavor = rule.Flavor
		depth := f.orderedDepth
		if rule.Kind == docmodel.KindList {
			node.Ordered = rule.Ordered
			node.Definition = rule.Definition
			if rule.Ordered {
				depth++
				node.Enumeration = docmodel.EnumArabic
				if depth > 1 {
					node.Enumeration = docmodel.EnumLowerAlpha
				}
			}
		}
		f.parent.Append(node)
		return r.pushChildren(f, node, stack, f.secLevel, f.verbatim, depth)
	}
}

// passthrough handles an element the table does not recognize: a warning
// is recorded once per tag, and unless the drop policy is active the
// element is preserved losslessly with its content still translated.
func (r *run) passthrough(f frame, stack []frame) []frame {
	key := f.el.Space + " " + f.el.Name
	if !r.warned[key] {
		r.warned[key] = true
		r.diags.Warnf(diag.CodeUnsupportedElement, r.path, f.el.Line,
			"don't know how to handle <%s>", f.el.Name)
		slog.Debug("unsupported element", "file", r.path, "tag", f.el.Name, "namespace", f.el.Space)
	}
	if r.b.passthrough == PassthroughDrop {
		return stack
	}

	node := r.newNode(f.el, docmodel.KindPassthrough)
	node.OrigSpace = f.el.Space
	node.OrigName = f.el.Name
	if len(f.el.Attrs) > 0 {
		node.OrigAttrs = make(map[string]string, len(f.el.Attrs))
		for _, a := range f.el.Attrs {
			name := a.Name
			if a.Space != "" {
				name = a.Space + ":" + a.Name
			}
			node.OrigAttrs[name] = a.Value
		}
	}
	f.parent.Append(node)
	return r.pushChildren(f, node, stack, f.secLevel, f.verbatim, f.orderedDepth)
}

// xref handles <xref/>: linkend references are queued for the finalize
// pass, xlink:href ones are plain external links.
func (r *run) xref(f frame) {
	if target, ok := f.el.LookupAttr("", "linkend"); ok && target != "" {
		node := r.newNode(f.el, docmodel.KindCrossReference)
		node.TargetID = target
		f.parent.Append(node)
		r.queue.Add(refs.Pending{Node: node, TargetID: target, File: r.path, Line: f.el.Line})
		return
	}
	node := r.newNode(f.el, docmodel.KindExternalLink)
	node.Href = hrefOf(f.el)
	f.parent.Append(node)
}

// link handles <link> and <ulink>, which carry child content.
func (r *run) link(f frame, stack []frame) []frame {
	if target, ok := f.el.LookupAttr("", "linkend"); ok && target != "" {
		node := r.newNode(f.el, docmodel.KindCrossReference)
		node.TargetID = target
		f.parent.Append(node)
		r.queue.Add(refs.Pending{Node: node, TargetID: target, File: r.path, Line: f.el.Line})
		return r.pushChildren(f, node, stack, f.secLevel, f.verbatim, f.orderedDepth)
	}
	node := r.newNode(f.el, docmodel.KindExternalLink)
	node.Href = hrefOf(f.el)
	f.parent.Append(node)
	return r.pushChildren(f, node, stack, f.secLevel, f.verbatim, f.orderedDepth)
}

// pushChildren schedules el's children after the current frame, keeping
// document order on the LIFO stack.
func (r *run) pushChildren(f frame, parent *docmodel.Node, stack []frame, secLevel int, verbatim bool, orderedDepth int) []frame {
	var ancestors []string
	if len(f.el.Children) > 0 {
		ancestors = make([]string, 0, len(f.ancestors)+1)
		ancestors = append(ancestors, f.ancestors...)
		ancestors = append(ancestors, f.el.Name)
	}
	for i := len(f.el.Children) - 1; i >= 0; i-- {
		child := frame{
			parent:       parent,
			ancestors:    ancestors,
			secLevel:     secLevel,
			verbatim:     verbatim,
			orderedDepth: orderedDepth,
		}
		switch c := f.el.Children[i].(type) {
		case *xmltree.Element:
			child.el = c
		case xmltree.Text:
			child.text = c.Value
			child.textLine = c.Line
		}
		stack = append(stack, child)
	}
	return stack
}

// emitText appends a text run to the frame's parent node. Outside verbatim
// context whitespace is collapsed per DocBook mixed-content conventions;
// inside it the run is kept byte for byte.
func (r *run) emitText(f frame) {
	text := f.text
	if !f.verbatim {
		text = collapseWhitespace(text)
		if text == "" || text == " " && len(f.parent.Children) == 0 {
			return
		}
	}
	f.parent.Append(&docmodel.Node{Kind: docmodel.KindText, Text: normalizeText(text), Line: f.textLine})
}

// newNode creates a node for el, attaching pending anchors and
// registering any declared id. A duplicate declaration keeps the first
// registration authoritative, records the error, and marks this node.
func (r *run) newNode(el *xmltree.Element, kind docmodel.Kind) *docmodel.Node {
	node := docmodel.NewNode(kind)
	node.Line = el.Line

	if len(r.anchors) > 0 {
		node.IDs = append(node.IDs, r.anchors...)
		r.anchors = nil
		for _, id := range node.IDs {
			r.registerID(id, node, el.Line)
		}
	}
	if id := r.idOf(el); id != "" {
		if r.registerID(id, node, el.Line) {
			node.ID = id
		}
	}
	return node
}

func (r *run) registerID(id string, node *docmodel.Node, line int) bool {
	err := r.registry.Register(id, r.path, node, line)
	if err == nil {
		return true
	}
	r.diags.Errorf(diag.CodeDuplicateID, r.path, line, "%v", err)
	marker := docmodel.NewNode(docmodel.KindBrokenTopic)
	marker.Path = r.path
	marker.Text = "duplicate id " + id
	node.Append(marker)
	return false
}

// idOf resolves the declared id attribute for the document's dialect.
func (r *run) idOf(el *xmltree.Element) string {
	if r.docbook5 {
		return el.AttrNS(xmltree.XMLNamespace, "id")
	}
	return el.Attr("id")
}

func hrefOf(el *xmltree.Element) string {
	if url := el.Attr("url"); url != "" {
		return url
	}
	return el.AttrNS("http://www.w3.org/1999/xlink", "href")
}

func isStrong(el *xmltree.Element) bool {
	return el.Attr("role") == "strong"
}

// sectionLevel applies the nesting rules: levels never skip ahead of the
// enclosing section and never go negative.
func sectionLevel(declared, current int) int {
	switch declared {
	case mapping.LevelRelative:
		return current + 1
	case mapping.LevelSame:
		if current < 0 {
			return 0
		}
		return current
	default:
		if declared > current+1 {
			return current + 1
		}
		if declared < 0 {
			return 0
		}
		return declared
	}
}

// Package mapping is the dispatch table from (namespace, tag, ancestor
// context) to a node-construction rule. Lookup never fails: unrecognized
// elements fall back to the passthrough rule so a build can always proceed.
package mapping

import "github.com/bonzini/db4sphinx/internal/docmodel"

// Action tells the document builder how to construct nodes for an element.
type Action int

const (
	// ActionBlock creates a node of the rule's kind and descends into it.
	ActionBlock Action = iota
	// ActionSection creates a section node; its level comes from the rule.
	ActionSection
	// ActionTitle creates a title node, or a caption under table/figure context.
	ActionTitle
	// ActionInline creates an inline node carrying the rule's role.
	ActionInline
	// ActionVerbatim creates a literal block; whitespace is kept exactly.
	ActionVerbatim
	// ActionTransparent creates no node; children attach to the parent.
	ActionTransparent
	// ActionSkip drops the element and its content.
	ActionSkip
	// ActionXref queues a cross-reference for the finalize pass.
	ActionXref
	// ActionLink creates an external or internal link with child content.
	ActionLink
	// ActionAnchor records a pending id to attach to the next node.
	ActionAnchor
	// ActionPassthrough preserves the element losslessly.
	ActionPassthrough
)

// Sentinel section levels. Non-negative levels are fixed (chapter is 0,
// sect1 is 1, ...); the sentinels nest relative to the enclosing section.
const (
	// LevelRelative opens one level below the current section.
	LevelRelative = -1
	// LevelSame opens at the current section level.
	LevelSame = -2
)

// Rule describes how to build nodes for one element in one context.
type Rule struct {
	Action     Action
	Kind       docmodel.Kind
	Role       string
	Flavor     string
	Level      int
	Ordered    bool
	Definition bool
}

// Passthrough is the fallback rule. It always succeeds.
var Passthrough = Rule{Action: ActionPassthrough, Kind: docmodel.KindPassthrough}

type contextual struct {
	ancestor string
	rule     Rule
}

type entry struct {
	base Rule
	ctx  []contextual
}

// Table resolves elements to construction rules. A Table is immutable
// after construction and safe for concurrent lookups.
type Table struct {
	namespaces map[string]bool
	rules      map[string]entry
}

// NewTable creates an empty table accepting the given element namespaces.
// The empty string admits un-namespaced (DocBook 4) documents.
func NewTable(namespaces ...string) *Table {
	ns := make(map[string]bool, len(namespaces))
	for _, n := range namespaces {
		ns[n] = true
	}
	return &Table{namespaces: ns, rules: make(map[string]entry)}
}

// Register adds the context-free rule for tag.
func (t *Table) Register(tag string, rule Rule) {
	e := t.rules[tag]
	e.base = rule
	t.rules[tag] = e
}

// RegisterContext adds a rule for tag that applies only when ancestor
// appears on the ancestor chain. Context rules win over the base rule;
// among context rules the innermost matching ancestor wins.
func (t *Table) RegisterContext(tag, ancestor string, rule Rule) {
	e := t.rules[tag]
	e.ctx = append(e.ctx, contextual{ancestor: ancestor, rule: rule})
	t.rules[tag] = e
}

// Resolve returns the construction rule for an element. ancestors lists
// the open element tags outermost first. The second result is false when
// the fallback passthrough rule was returned.
func (t *Table) Resolve(space, tag string, ancestors []string) (Rule, bool) {
	if !t.namespaces[space] {
		return Passthrough, false
	}
	e, ok := t.rules[tag]
	if !ok {
		return Passthrough, false
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		for _, c := range e.ctx {
			if c.ancestor == ancestors[i] {
				return c.rule, true
			}
		}
	}
	return e.base, true
}

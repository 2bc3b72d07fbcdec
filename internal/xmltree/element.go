package xmltree

// XMLNamespace is the URI bound to the reserved "xml" prefix, used by
// DocBook 5 for xml:id attributes.
const XMLNamespace = "http://www.w3.org/XML/1998/namespace"

// Node is either an *Element or a Text run. The two interleave freely to
// represent mixed content.
type Node interface {
	isNode()
}

// Text is a run of character data between child elements.
type Text struct {
	Value string
	Line  int
}

func (Text) isNode() {}

// Attr is a single attribute with its raw, uninterpreted value.
type Attr struct {
	Space string
	Name  string
	Value string
}

// Element is one parsed XML element. The tree is immutable after parsing
// and owned by the build that consumes it.
type Element struct {
	Space    string
	Name     string
	Attrs    []Attr
	Children []Node
	Line     int
}

func (*Element) isNode() {}

// Attr returns the value of the named un-namespaced attribute, or "".
func (e *Element) Attr(name string) string {
	v, _ := e.LookupAttr("", name)
	return v
}

// AttrNS returns the value of a namespaced attribute, or "".
func (e *Element) AttrNS(space, name string) string {
	v, _ := e.LookupAttr(space, name)
	return v
}

// LookupAttr reports an attribute value and whether it was present.
// The reserved "xml" prefix is matched by both its prefix form and its
// namespace URI, since encoding/xml has reported either across versions.
func (e *Element) LookupAttr(space, name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name != name {
			continue
		}
		if a.Space == space {
			return a.Value, true
		}
		if space == XMLNamespace && a.Space == "xml" {
			return a.Value, true
		}
	}
	return "", false
}

// ChildElements returns the element children in document order, skipping
// text runs.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// FirstChild returns the first child element with the given local name in
// the given namespace, or nil.
func (e *Element) FirstChild(space, name string) *Element {
	for _, c := range e.Children {
		el, ok := c.(*Element)
		if ok && el.Space == space && el.Name == name {
			return el
		}
	}
	return nil
}

// PlainText flattens the element's entire text content, markup removed.
func (e *Element) PlainText() string {
	var b []byte
	var walk func(el *Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			switch n := c.(type) {
			case Text:
				b = append(b, n.Value...)
			case *Element:
				walk(n)
			}
		}
	}
	walk(e)
	return string(b)
}

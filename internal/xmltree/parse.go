// Package xmltree parses one XML document into a generic, order-preserving
// element tree. It performs no DocBook interpretation and no schema
// validation; XInclude resolution is assumed to have happened upstream.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/net/html/charset"
)

// MalformedXMLError reports unparseable XML syntax. It is fatal for the
// file it names but never for sibling files of the same assembly.
type MalformedXMLError struct {
	Path   string
	Line   int
	Offset int64
	Err    error
}

func (e *MalformedXMLError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed xml in %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed xml in %s: %v", e.Path, e.Err)
}

func (e *MalformedXMLError) Unwrap() error { return e.Err }

// Parse builds an Element tree from raw XML bytes. path is used only for
// error reporting. Non-UTF-8 encodings declared in the XML prolog are
// handled through the charset reader.
func Parse(data []byte, path string) (*Element, error) {
	lines := newLineIndex(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var stack []*Element
	var root *Element
	rootClosed := false

	fail := func(err error) error {
		line := lines.at(dec.InputOffset())
		var syntax *xml.SyntaxError
		if errors.As(err, &syntax) {
			line = syntax.Line
		}
		return &MalformedXMLError{Path: path, Line: line, Offset: dec.InputOffset(), Err: err}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fail(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, fail(fmt.Errorf("unexpected element <%s> after document end", t.Name.Local))
			}
			el := &Element{
				Space: t.Name.Space,
				Name:  t.Name.Local,
				Attrs: convertAttrs(t.Attr),
				Line:  lines.at(dec.InputOffset()),
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					rootClosed = true
				}
			}

		case xml.CharData:
			if len(stack) == 0 {
				continue // whitespace around the root element
			}
			parent := stack[len(stack)-1]
			text := string(t)
			// Adjacent runs are merged so entity boundaries do not split text.
			if n := len(parent.Children); n > 0 {
				if prev, ok := parent.Children[n-1].(Text); ok {
					parent.Children[n-1] = Text{Value: prev.Value + text, Line: prev.Line}
					continue
				}
			}
			parent.Children = append(parent.Children, Text{Value: text, Line: lines.at(dec.InputOffset())})
		}
		// Comments, directives and processing instructions are dropped.
	}

	if root == nil {
		return nil, &MalformedXMLError{Path: path, Line: 0, Err: io.ErrUnexpectedEOF}
	}
	if !rootClosed {
		return nil, &MalformedXMLError{Path: path, Line: lines.at(dec.InputOffset()), Err: io.ErrUnexpectedEOF}
	}
	return root, nil
}

func convertAttrs(attrs []xml.Attr) []Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		out = append(out, Attr{Space: a.Name.Space, Name: a.Name.Local, Value: a.Value})
	}
	return out
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	newlines []int64
}

func newLineIndex(data []byte) *lineIndex {
	var nl []int64
	for i, b := range data {
		if b == '\n' {
			nl = append(nl, int64(i))
		}
	}
	return &lineIndex{newlines: nl}
}

func (l *lineIndex) at(offset int64) int {
	return sort.Search(len(l.newlines), func(i int) bool {
		return l.newlines[i] >= offset
	}) + 1
}

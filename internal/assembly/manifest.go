// Package assembly resolves a DocBook assembly manifest into built topic
// documents plus a table-of-contents tree mirroring the manifest's
// structure/module nesting.
package assembly

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bonzini/db4sphinx/internal/mapping"
	"github.com/bonzini/db4sphinx/internal/xmltree"
)

// MalformedManifestError is fatal at run scope: without a readable
// manifest there is nothing to resolve.
type MalformedManifestError struct {
	Path string
	Err  error
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("malformed manifest %s: %v", e.Path, e.Err)
}

func (e *MalformedManifestError) Unwrap() error { return e.Err }

// CyclicAssemblyError is fatal at assembly scope: a structure transitively
// references a manifest already being expanded.
type CyclicAssemblyError struct {
	Path  string
	Chain []string
}

func (e *CyclicAssemblyError) Error() string {
	return fmt.Sprintf("cyclic assembly: %s already on active path %s",
		e.Path, strings.Join(e.Chain, " -> "))
}

// Resource is one <resource> declaration: an id naming a file, with an
// optional human description used as its TOC title.
type Resource struct {
	ID          string
	FileRef     string
	Description string
}

// Entry is one structure or module of the manifest, in document order.
type Entry struct {
	// Structure entries group; module entries reference one topic file.
	Structure bool
	// Path is the referenced file resolved against the base directory,
	// "" for a pure grouping entry.
	Path string
	// Title labels the TOC entry: the resource description when present.
	Title    string
	Line     int
	Children []Entry
}

// Manifest is a parsed assembly document.
type Manifest struct {
	Path      string
	RootID    string
	Resources map[string]Resource
	Entries   []Entry
}

// ParseManifest reads and parses one assembly file. Hrefs and filerefs
// are resolved relative to baseDir (or the resources' xml:base below it).
func ParseManifest(path, baseDir string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedManifestError{Path: path, Err: err}
	}
	root, err := xmltree.Parse(data, path)
	if err != nil {
		return nil, &MalformedManifestError{Path: path, Err: err}
	}
	if root.Name != "assembly" {
		return nil, &MalformedManifestError{Path: path,
			Err: fmt.Errorf("root element is <%s>, want <assembly>", root.Name)}
	}

	m := &Manifest{
		Path:      path,
		RootID:    root.AttrNS(xmltree.XMLNamespace, "id"),
		Resources: make(map[string]Resource),
	}
	if m.RootID == "" {
		m.RootID = root.Attr("id")
	}

	for _, el := range root.ChildElements() {
		switch el.Name {
		case "resources":
			m.parseResources(el)
		case "structure", "module":
			entry, err := m.parseEntry(el, baseDir)
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, entry)
		}
	}
	return m, nil
}

func (m *Manifest) parseResources(el *xmltree.Element) {
	base := el.AttrNS(xmltree.XMLNamespace, "base")
	if base == "" {
		base = el.Attr("base")
	}
	for _, res := range el.ChildElements() {
		if res.Name != "resource" {
			continue
		}
		id := res.AttrNS(xmltree.XMLNamespace, "id")
		if id == "" {
			id = res.Attr("id")
		}
		r := Resource{ID: id, FileRef: filepath.Join(base, res.Attr("fileref"))}
		if desc := res.FirstChild(res.Space, "description"); desc != nil {
			r.Description = strings.TrimSpace(desc.PlainText())
		}
		if id != "" {
			m.Resources[id] = r
		}
	}
}

func (m *Manifest) parseEntry(el *xmltree.Element, baseDir string) (Entry, error) {
	entry := Entry{Structure: el.Name == "structure", Line: el.Line}

	fileRef := el.Attr("href")
	if ref := el.Attr("resourceref"); ref != "" {
		res, ok := m.Resources[ref]
		if !ok {
			return entry, &MalformedManifestError{Path: m.Path,
				Err: fmt.Errorf("structure references undeclared resource %q (line %d)", ref, el.Line)}
		}
		fileRef = res.FileRef
		entry.Title = res.Description
	}
	if fileRef != "" {
		entry.Path = filepath.Join(baseDir, fileRef)
	}

	for _, child := range el.ChildElements() {
		switch child.Name {
		case "structure", "module":
			sub, err := m.parseEntry(child, baseDir)
			if err != nil {
				return entry, err
			}
			entry.Children = append(entry.Children, sub)
		case "title":
			if entry.Title == "" {
				entry.Title = strings.TrimSpace(child.PlainText())
			}
		case "output":
			// Output hints steer the upstream chunker, not this tree.
		}
	}
	return entry, nil
}

// isAssemblyFile reports whether path parses as an assembly manifest.
// Unreadable or malformed files are not assemblies; the topic build will
// report them in its own terms.
func isAssemblyFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	root, err := xmltree.Parse(data, path)
	if err != nil {
		return false
	}
	return root.Name == "assembly" &&
		(root.Space == "" || root.Space == mapping.DocBook5Namespace)
}

package docmodel

// Document is the built tree for one topic file.
type Document struct {
	// Path is the file the tree was built from, relative to the assembly
	// base directory.
	Path string
	// Root is a KindDocument node; topic content hangs below it.
	Root *Node
	// Broken is set when the document is a placeholder for a file that
	// could not be read or parsed.
	Broken bool
}

// NewDocument creates an empty document for path.
func NewDocument(path string) *Document {
	return &Document{Path: path, Root: NewNode(KindDocument)}
}

// NewBrokenDocument creates the placeholder substituted for an unreadable
// or unparseable topic file.
func NewBrokenDocument(path string) *Document {
	doc := &Document{Path: path, Root: NewNode(KindDocument), Broken: true}
	placeholder := NewNode(KindBrokenTopic)
	placeholder.Path = path
	doc.Root.Append(placeholder)
	return doc
}

// Title returns the document's first section title, or "".
func (d *Document) Title() string {
	return d.Root.FirstTitle()
}

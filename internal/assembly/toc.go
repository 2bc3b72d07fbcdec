package assembly

// TOCEntry is one node of the table-of-contents tree. The tree mirrors
// the manifest's structure/module nesting exactly.
type TOCEntry struct {
	// Title labels the entry in navigation.
	Title string
	// Path is the topic file this entry opens, "" for pure grouping
	// entries and for broken topics (an entry pointing nowhere).
	Path string
	// Broken marks the placeholder entry of a topic that failed to build.
	Broken   bool
	Children []*TOCEntry
}

// Depth returns the maximum nesting depth below (and including) e.
func (e *TOCEntry) Depth() int {
	max := 0
	for _, c := range e.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Flatten returns the entries of the subtree in depth-first order.
func (e *TOCEntry) Flatten() []*TOCEntry {
	out := []*TOCEntry{e}
	for _, c := range e.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}

package assembly

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bonzini/db4sphinx/internal/build"
	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/docmodel"
	"github.com/bonzini/db4sphinx/internal/metrics"
	"github.com/bonzini/db4sphinx/internal/refs"
	"github.com/bonzini/db4sphinx/internal/xmltree"
)

// Result carries everything one resolution run produced. The reference
// finalize pass consumes Queue against Registry once Resolve returns.
type Result struct {
	TOC       *TOCEntry
	Documents []*docmodel.Document
	Registry  *refs.IDRegistry
	Queue     *refs.XrefQueue
	Diags     *diag.Collector
}

// Document returns the built document for path, or nil.
func (r *Result) Document(path string) *docmodel.Document {
	for _, d := range r.Documents {
		if d.Path == path {
			return d
		}
	}
	return nil
}

// Resolver expands an assembly manifest, builds every referenced topic
// file and assembles the TOC tree.
type Resolver struct {
	baseDir     string
	builder     *build.Builder
	concurrency int
	recorder    metrics.Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds the parallel per-file build fan-out.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRecorder injects a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Resolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewResolver creates a resolver whose manifest hrefs resolve against
// baseDir.
func NewResolver(baseDir string, builder *build.Builder, opts ...Option) *Resolver {
	r := &Resolver{
		baseDir:     baseDir,
		builder:     builder,
		concurrency: runtime.NumCPU(),
		recorder:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// expanded is one manifest entry after nested assemblies were spliced in.
type expanded struct {
	path     string // topic file to build, "" for pure grouping
	title    string
	children []expanded
}

// Resolve runs one assembly resolution. A malformed manifest or a cyclic
// structure returns an error; the partial Result still carries whatever
// diagnostics were collected. Recoverable conditions (missing topics,
// duplicate ids, unknown elements) never fail the run.
func (r *Resolver) Resolve(ctx context.Context, manifestPath string) (*Result, error) {
	start := time.Now()
	diags := diag.NewCollector()
	result := &Result{
		Registry: refs.NewIDRegistry(),
		Queue:    refs.NewXrefQueue(),
		Diags:    diags,
	}

	manifest, err := ParseManifest(manifestPath, r.baseDir)
	if err != nil {
		diags.Errorf(diag.CodeMalformedManifest, manifestPath, 0, "%v", err)
		r.recorder.IncDiagnostic(string(diag.CodeMalformedManifest))
		return result, err
	}

	active := map[string]bool{cleanPath(manifestPath): true}
	entries, err := r.expand(manifest, active, []string{manifestPath})
	if err != nil {
		diags.Errorf(diag.CodeCyclicAssembly, manifestPath, 0, "%v", err)
		r.recorder.IncDiagnostic(string(diag.CodeCyclicAssembly))
		return result, err
	}

	files := collectFiles(entries)
	r.recorder.SetBuildConcurrency(r.concurrency)
	slog.Info("resolving assembly",
		"manifest", manifestPath, "files", len(files), "concurrency", r.concurrency)

	// Phase 1: parse and build every topic file in parallel. Each worker
	// owns its registry, queue and collector; merging below happens in
	// manifest order so results are deterministic.
	built, err := runOrdered(ctx, files, r.concurrency, r.buildFile)
	if err != nil {
		return result, err
	}

	docs := make(map[string]*docmodel.Document, len(files))
	for _, fr := range built {
		diags.Merge(fr.diags)
		result.Registry.Merge(fr.registry, func(losing refs.Entry, dup *refs.DuplicateIDError) {
			diags.Errorf(diag.CodeDuplicateID, losing.File, 0, "%v", dup)
			r.recorder.IncDiagnostic(string(diag.CodeDuplicateID))
			losing.Node.ID = ""
			marker := docmodel.NewNode(docmodel.KindBrokenTopic)
			marker.Path = losing.File
			marker.Text = "duplicate id " + dup.ID
			losing.Node.Append(marker)
		})
		for _, p := range fr.queue.Drain() {
			result.Queue.Add(p)
		}
		docs[fr.doc.Path] = fr.doc
		result.Documents = append(result.Documents, fr.doc)
	}

	result.TOC = r.buildTOC(manifest, entries, docs)
	r.recorder.ObserveResolveDuration(time.Since(start))
	return result, nil
}

type fileResult struct {
	doc      *docmodel.Document
	registry *refs.IDRegistry
	queue    *refs.XrefQueue
	diags    *diag.Collector
}

// buildFile parses and builds one topic file. Failure substitutes the
// broken-topic placeholder and records diagnostics; it never propagates.
func (r *Resolver) buildFile(path string) *fileResult {
	start := time.Now()
	fr := &fileResult{
		registry: refs.NewIDRegistry(),
		queue:    refs.NewXrefQueue(),
		diags:    diag.NewCollector(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fr.diags.Errorf(diag.CodeMissingTopicFile, path, 0, "cannot read topic file: %v", err)
		r.recorder.IncDiagnostic(string(diag.CodeMissingTopicFile))
		fr.doc = docmodel.NewBrokenDocument(path)
		r.observeBuild(start, false)
		return fr
	}

	root, err := xmltree.Parse(data, path)
	if err != nil {
		fr.diags.Errorf(diag.CodeMalformedXML, path, lineOf(err), "%v", err)
		fr.diags.Errorf(diag.CodeMissingTopicFile, path, 0, "topic file failed to parse")
		r.recorder.IncDiagnostic(string(diag.CodeMalformedXML))
		r.recorder.IncDiagnostic(string(diag.CodeMissingTopicFile))
		fr.doc = docmodel.NewBrokenDocument(path)
		r.observeBuild(start, false)
		return fr
	}

	fr.doc = r.builder.Build(root, path, fr.registry, fr.queue, fr.diags)
	r.observeBuild(start, true)
	return fr
}

func (r *Resolver) observeBuild(start time.Time, ok bool) {
	r.recorder.ObserveTopicBuildDuration(time.Since(start), ok)
	r.recorder.IncTopicResult(ok)
}

// expand splices nested assembly manifests into the entry tree, guarding
// the active expansion path against cycles.
func (r *Resolver) expand(m *Manifest, active map[string]bool, chain []string) ([]expanded, error) {
	var out []expanded
	for _, e := range m.Entries {
		x, err := r.expandEntry(e, active, chain)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (r *Resolver) expandEntry(e Entry, active map[string]bool, chain []string) (expanded, error) {
	x := expanded{title: e.Title}

	if e.Path != "" && e.Structure && isAssemblyFile(e.Path) {
		clean := cleanPath(e.Path)
		if active[clean] {
			return x, &CyclicAssemblyError{Path: e.Path, Chain: append(chain, e.Path)}
		}
		nested, err := ParseManifest(e.Path, r.baseDir)
		if err != nil {
			return x, err
		}
		active[clean] = true
		defer delete(active, clean)
		children, err := r.expand(nested, active, append(chain, e.Path))
		if err != nil {
			return x, err
		}
		if x.title == "" {
			x.title = nested.RootID
		}
		x.children = children
	} else if e.Path != "" {
		x.path = e.Path
	}

	for _, c := range e.Children {
		sub, err := r.expandEntry(c, active, chain)
		if err != nil {
			return x, err
		}
		x.children = append(x.children, sub)
	}
	return x, nil
}

// buildTOC mirrors the expanded entry nesting 1:1 into TOC entries.
func (r *Resolver) buildTOC(m *Manifest, entries []expanded, docs map[string]*docmodel.Document) *TOCEntry {
	root := &TOCEntry{Title: m.RootID}
	if root.Title == "" {
		root.Title = strings.TrimSuffix(filepath.Base(m.Path), filepath.Ext(m.Path))
	}
	for _, e := range entries {
		root.Children = append(root.Children, r.tocEntry(e, docs))
	}
	return root
}

func (r *Resolver) tocEntry(e expanded, docs map[string]*docmodel.Document) *TOCEntry {
	entry := &TOCEntry{Title: e.title, Path: e.path}
	if e.path != "" {
		doc := docs[e.path]
		if doc == nil || doc.Broken {
			// The placeholder entry points nowhere.
			entry.Broken = true
			entry.Path = ""
		}
		if entry.Title == "" && doc != nil && !doc.Broken {
			entry.Title = doc.Title()
		}
		if entry.Title == "" {
			entry.Title = strings.TrimSuffix(filepath.Base(e.path), filepath.Ext(e.path))
		}
	}
	for _, c := range e.children {
		entry.Children = append(entry.Children, r.tocEntry(c, docs))
	}
	return entry
}

func collectFiles(entries []expanded) []string {
	seen := make(map[string]bool)
	var files []string
	var walk func(es []expanded)
	walk = func(es []expanded) {
		for _, e := range es {
			if e.path != "" && !seen[e.path] {
				seen[e.path] = true
				files = append(files, e.path)
			}
			walk(e.children)
		}
	}
	walk(entries)
	return files
}

func cleanPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func lineOf(err error) int {
	if mx, ok := err.(*xmltree.MalformedXMLError); ok {
		return mx.Line
	}
	return 0
}

// Package adapter is the boundary the host toolchain consumes: it runs
// assembly resolutions end to end (build fan-out, then the reference
// finalize pass) and exposes the finished trees read-only.
package adapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bonzini/db4sphinx/internal/assembly"
	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/docmodel"
	"github.com/bonzini/db4sphinx/internal/xref"
)

// Run is one completed assembly resolution.
type Run struct {
	// ID uniquely names the run in logs, events and diagnostics reports.
	ID           string
	ManifestPath string
	Result       *assembly.Result
	Resolved     int
	Unresolved   int
}

// Adapter exposes resolved assemblies to the host toolchain. It is safe
// for concurrent queries; resolutions themselves serialize per manifest.
type Adapter struct {
	resolver *assembly.Resolver

	mu   sync.RWMutex
	runs map[string]*Run // keyed by manifest path
	seq  []*Run          // resolution order, for ordered diagnostics
}

// New creates an adapter around resolver.
func New(resolver *assembly.Resolver) *Adapter {
	return &Adapter{
		resolver: resolver,
		runs:     make(map[string]*Run),
	}
}

// ResolveAssembly runs both phases for one manifest and records the run.
// The returned error is the manifest-scoped fatal error, if any; the run
// is still recorded so Diagnostics can report what was collected.
func (a *Adapter) ResolveAssembly(ctx context.Context, manifestPath string) (*Run, error) {
	run := &Run{ID: uuid.NewString(), ManifestPath: manifestPath}
	result, err := a.resolver.Resolve(ctx, manifestPath)
	run.Result = result
	if err == nil {
		run.Resolved, run.Unresolved = xref.Resolve(result.Queue, result.Registry, result.Diags)
	}

	a.mu.Lock()
	if prev, ok := a.runs[manifestPath]; ok {
		// Re-resolution replaces the previous run in place.
		for i, r := range a.seq {
			if r == prev {
				a.seq[i] = run
				break
			}
		}
	} else {
		a.seq = append(a.seq, run)
	}
	a.runs[manifestPath] = run
	a.mu.Unlock()

	if err != nil {
		slog.Error("assembly resolution failed",
			"run_id", run.ID, "manifest", manifestPath, "error", err)
		return run, err
	}
	slog.Info("assembly resolved",
		"run_id", run.ID, "manifest", manifestPath,
		"documents", len(result.Documents),
		"xrefs_resolved", run.Resolved, "xrefs_unresolved", run.Unresolved)
	return run, nil
}

// Document returns the built tree for a topic file path, or nil.
func (a *Adapter) Document(path string) *docmodel.Document {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, run := range a.seq {
		if run.Result == nil {
			continue
		}
		if doc := run.Result.Document(path); doc != nil {
			return doc
		}
	}
	return nil
}

// TocTree returns the TOC tree built for manifestPath, or nil.
func (a *Adapter) TocTree(manifestPath string) *assembly.TOCEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if run, ok := a.runs[manifestPath]; ok && run.Result != nil {
		return run.Result.TOC
	}
	return nil
}

// ResolveXref looks up a declared id across every resolved assembly.
// Queryable only after the finalize pass, which ResolveAssembly ran.
func (a *Adapter) ResolveXref(id string) (*docmodel.Ref, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, run := range a.seq {
		if run.Result == nil {
			continue
		}
		if entry, ok := run.Result.Registry.Lookup(id); ok {
			return &docmodel.Ref{File: entry.File, Node: entry.Node}, true
		}
	}
	return nil, false
}

// Diagnostics returns every recorded diagnostic in resolution order.
func (a *Adapter) Diagnostics() []diag.Diagnostic {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []diag.Diagnostic
	for _, run := range a.seq {
		if run.Result != nil {
			out = append(out, run.Result.Diags.All()...)
		}
	}
	return out
}

// Runs returns the recorded runs in resolution order.
func (a *Adapter) Runs() []*Run {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Run, len(a.seq))
	copy(out, a.seq)
	return out
}

// Package xref performs the cross-reference finalize pass. It runs
// exactly once per assembly, strictly after every constituent file has
// been built: resolving eagerly per file would spuriously fail on forward
// references into files not yet parsed.
package xref

import (
	"log/slog"

	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/docmodel"
	"github.com/bonzini/db4sphinx/internal/refs"
)

// Resolve drains queue against registry. Found targets are attached to
// the referencing node as a handle (owning file plus node, not a copy);
// misses mark the node unresolved and record a warning. Every queued
// entry is either resolved or reported by the time Resolve returns.
func Resolve(queue *refs.XrefQueue, registry *refs.IDRegistry, diags *diag.Collector) (resolved, unresolved int) {
	for _, pending := range queue.Drain() {
		entry, ok := registry.Lookup(pending.TargetID)
		if !ok {
			unresolved++
			pending.Node.Target = nil
			diags.Warnf(diag.CodeUnresolvedReference, pending.File, pending.Line,
				"reference target %q not found", pending.TargetID)
			continue
		}
		resolved++
		pending.Node.Target = &docmodel.Ref{File: entry.File, Node: entry.Node}
	}
	slog.Debug("cross-reference pass complete", "resolved", resolved, "unresolved", unresolved)
	return resolved, unresolved
}

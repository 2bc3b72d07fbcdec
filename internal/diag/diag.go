// Package diag collects the warnings and errors accumulated during one
// assembly-resolution run. Recoverable conditions are recorded here in
// encounter order instead of being raised individually, so a caller can
// present a complete report rather than stopping at the first issue.
package diag

import (
	"fmt"
	"sync"
)

// Severity indicates the importance level of a recorded diagnostic.
type Severity int

const (
	// SeverityInfo indicates informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning indicates recoverable issues such as unsupported elements.
	SeverityWarning
	// SeverityError indicates conditions that degraded output (placeholders, dropped ids).
	SeverityError
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Code classifies a diagnostic so callers can filter without string matching.
type Code string

const (
	CodeMalformedXML        Code = "malformed-xml"
	CodeUnsupportedElement  Code = "unsupported-element"
	CodeDuplicateID         Code = "duplicate-id"
	CodeUnresolvedReference Code = "unresolved-reference"
	CodeMissingTopicFile    Code = "missing-topic-file"
	CodeCyclicAssembly      Code = "cyclic-assembly"
	CodeMalformedManifest   Code = "malformed-manifest"
)

// Diagnostic represents a single recorded problem.
type Diagnostic struct {
	Severity Severity
	Code     Code
	File     string // source file the diagnostic refers to, if any
	Line     int    // 1-based line number, 0 for file-level issues
	Message  string
}

// String formats the diagnostic the way the CLI prints it.
func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, loc, d.Message)
}

// Collector accumulates diagnostics in order. It is safe for concurrent
// appends during the parallel per-file build phase.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates an empty collector for one run.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a diagnostic.
func (c *Collector) Record(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Warnf records a warning-severity diagnostic.
func (c *Collector) Warnf(code Code, file string, line int, format string, args ...any) {
	c.Record(Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		File:     file,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf records an error-severity diagnostic.
func (c *Collector) Errorf(code Code, file string, line int, format string, args ...any) {
	c.Record(Diagnostic{
		Severity: SeverityError,
		Code:     code,
		File:     file,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// All returns a copy of the recorded diagnostics in encounter order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Merge appends every diagnostic from other, preserving its internal order.
// Used when per-file collectors are folded into the run collector after the
// parallel build phase.
func (c *Collector) Merge(other *Collector) {
	if other == nil {
		return
	}
	items := other.All()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
}

// HasErrors returns true if any error-level diagnostics exist.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics with the given code.
func (c *Collector) Count(code Code) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Code == code {
			n++
		}
	}
	return n
}

package server

import (
	"sort"
	"sync"

	"lsp-indexer/src/internal/models/lsp"
)

// DiagnosticStore keeps the latest diagnostics published for each document.
// Every publish replaces the previous set; an empty set clears the entry.
type DiagnosticStore struct {
	mu    sync.RWMutex
	byURI map[string][]lsp.Diagnostic
}

func NewDiagnosticStore() *DiagnosticStore {
	return &DiagnosticStore{byURI: make(map[string][]lsp.Diagnostic)}
}

func (d *DiagnosticStore) Replace(uri string, diagnostics []lsp.Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(diagnostics) == 0 {
		delete(d.byURI, uri)
		return
	}
	cp := make([]lsp.Diagnostic, len(diagnostics))
	copy(cp, diagnostics)
	d.byURI[uri] = cp
}

// Get returns a copy of the diagnostics for uri
func (d *DiagnosticStore) Get(uri string) []lsp.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	src := d.byURI[uri]
	if len(src) == 0 {
		return nil
	}
	cp := make([]lsp.Diagnostic, len(src))
	copy(cp, src)
	return cp
}

// All returns a snapshot of every stored set keyed by uri
func (d *DiagnosticStore) All() map[string][]lsp.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]lsp.Diagnostic, len(d.byURI))
	for uri, diags := range d.byURI {
		cp := make([]lsp.Diagnostic, len(diags))
		copy(cp, diags)
		out[uri] = cp
	}
	return out
}

// URIs lists documents with at least one diagnostic, sorted
func (d *DiagnosticStore) URIs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	uris := make([]string, 0, len(d.byURI))
	for uri := range d.byURI {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Count returns the total number of stored diagnostics
func (d *DiagnosticStore) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, diags := range d.byURI {
		n += len(diags)
	}
	return n
}

func (d *DiagnosticStore) Clear() {
	d.mu.Lock()
	d.byURI = make(map[string][]lsp.Diagnostic)
	d.mu.Unlock()
}

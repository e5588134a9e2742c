package indexer

import (
	"path/filepath"
	"sort"
	"strings"

	"lsp-indexer/src/internal/models/lsp"
)

// GetAllSymbols returns a copy of the index in insertion order
func (ix *Indexer) GetAllSymbols() []IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]IndexEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// SearchSymbols matches query case-insensitively against symbol names.
// Names starting with the query rank before other matches; within a rank
// shorter names come first, then index order. An empty query matches
// nothing.
func (ix *Indexer) SearchSymbols(query string) []IndexEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	type hit struct {
		entry  IndexEntry
		prefix bool
	}

	ix.mu.RLock()
	var hits []hit
	for _, e := range ix.entries {
		name := strings.ToLower(e.Symbol.Name)
		idx := strings.Index(name, q)
		if idx < 0 {
			continue
		}
		hits = append(hits, hit{entry: e, prefix: idx == 0})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].prefix != hits[j].prefix {
			return hits[i].prefix
		}
		return len(hits[i].entry.Symbol.Name) < len(hits[j].entry.Symbol.Name)
	})

	out := make([]IndexEntry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out
}

// GetFileSymbols returns the entries of one file in index order. Relative
// paths are resolved against the scanned root.
func (ix *Indexer) GetFileSymbols(file string) []IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	want := file
	if !ix.isRemote() && !filepath.IsAbs(file) && ix.scanRoot != "" {
		want = filepath.Join(ix.scanRoot, file)
	} else if ix.isRemote() && !strings.HasPrefix(file, "/") && ix.scanRoot != "" {
		want = strings.TrimSuffix(ix.scanRoot, "/") + "/" + file
	}

	var out []IndexEntry
	for _, e := range ix.entries {
		if e.FilePath == want {
			out = append(out, e)
		}
	}
	return out
}

// GetSymbolsByKind returns every entry of the given kind in index order
func (ix *Indexer) GetSymbolsByKind(kind lsp.SymbolKind) []IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []IndexEntry
	for _, e := range ix.entries {
		if e.Symbol.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (ix *Indexer) IsIndexingComplete() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state == StateComplete
}

// GetIndexedFileCount counts files whose symbols made it into the index
func (ix *Indexer) GetIndexedFileCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.indexed
}

func (ix *Indexer) GetIndexedSymbolCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// GetTotalFileCount counts files found by the last scan
func (ix *Indexer) GetTotalFileCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}

// Files returns the scanned file list
func (ix *Indexer) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.files))
	copy(out, ix.files)
	return out
}

func (ix *Indexer) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// Status returns the last human-readable status line
func (ix *Indexer) Status() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.status
}

// Progress returns the zero-based position of the file being indexed and the
// total
func (ix *Indexer) Progress() (current, total int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.current, len(ix.files)
}

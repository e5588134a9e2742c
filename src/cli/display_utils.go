package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/server/indexer"
)

// symbolRow is the JSON shape of one index entry
type symbolRow struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
	File      string `json:"file"`
	Line      uint32 `json:"line"`
	Column    uint32 `json:"column"`
	Container string `json:"container,omitempty"`
}

// locationRow is the JSON shape of a definition or reference hit
type locationRow struct {
	File      string `json:"file"`
	Line      uint32 `json:"line"`
	Column    uint32 `json:"column"`
	EndLine   uint32 `json:"end_line"`
	EndColumn uint32 `json:"end_column"`
}

type completionRow struct {
	Label  string `json:"label"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type diagnosticRow struct {
	File     string `json:"file"`
	Line     uint32 `json:"line"`
	Column   uint32 `json:"column"`
	Severity string `json:"severity"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

type indexSummary struct {
	Root         string `json:"root"`
	State        string `json:"state"`
	Status       string `json:"status"`
	Files        int    `json:"files"`
	IndexedFiles int    `json:"indexed_files"`
	Symbols      int    `json:"symbols"`
}

// Rows use 1-based lines and columns like editors and compilers do.
func toSymbolRows(entries []indexer.IndexEntry, root string) []symbolRow {
	rows := make([]symbolRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, symbolRow{
			Name:      e.Symbol.Name,
			Kind:      e.Symbol.Kind.String(),
			Detail:    e.Symbol.Detail,
			File:      relativeTo(root, e.FilePath),
			Line:      e.Symbol.SelectionRange.Start.Line + 1,
			Column:    e.Symbol.SelectionRange.Start.Character + 1,
			Container: e.Container,
		})
	}
	return rows
}

func toLocationRows(locations []lsp.Location, root string) []locationRow {
	rows := make([]locationRow, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, locationRow{
			File:      relativeTo(root, common.URIToFilePath(loc.URI)),
			Line:      loc.Range.Start.Line + 1,
			Column:    loc.Range.Start.Character + 1,
			EndLine:   loc.Range.End.Line + 1,
			EndColumn: loc.Range.End.Character + 1,
		})
	}
	return rows
}

func toCompletionRows(items []lsp.CompletionItem) []completionRow {
	rows := make([]completionRow, 0, len(items))
	for _, item := range items {
		row := completionRow{Label: item.Label, Detail: item.Detail}
		if item.Kind != 0 {
			row.Kind = item.Kind.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func toDiagnosticRows(file string, diagnostics []lsp.Diagnostic) []diagnosticRow {
	rows := make([]diagnosticRow, 0, len(diagnostics))
	for _, d := range diagnostics {
		severity := "Error"
		if d.Severity != 0 {
			severity = d.Severity.String()
		}
		rows = append(rows, diagnosticRow{
			File:     file,
			Line:     d.Range.Start.Line + 1,
			Column:   d.Range.Start.Character + 1,
			Severity: severity,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return rows
}

func summarize(ix *indexer.Indexer) indexSummary {
	return indexSummary{
		Root:         ix.Root(),
		State:        ix.State().String(),
		Status:       ix.Status(),
		Files:        ix.GetTotalFileCount(),
		IndexedFiles: ix.GetIndexedFileCount(),
		Symbols:      ix.GetIndexedSymbolCount(),
	}
}

// relativeTo shortens p to a root-relative path when it lies under root
func relativeTo(root, p string) string {
	if root == "" {
		return p
	}
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

func printSummary(w io.Writer, s indexSummary) {
	fmt.Fprintf(w, "%s\n", s.Status)
	fmt.Fprintf(w, "  root:    %s\n", s.Root)
	fmt.Fprintf(w, "  state:   %s\n", s.State)
	fmt.Fprintf(w, "  files:   %d indexed of %d\n", s.IndexedFiles, s.Files)
	fmt.Fprintf(w, "  symbols: %d\n", s.Symbols)
}

func printSymbolRows(w io.Writer, rows []symbolRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No symbols found")
		return
	}
	for _, r := range rows {
		line := fmt.Sprintf("%-13s %s  %s:%d:%d", r.Kind, r.Name, r.File, r.Line, r.Column)
		if r.Container != "" {
			line += "  (in " + r.Container + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// printSymbolTree writes the outline with two spaces per nesting level
func printSymbolTree(w io.Writer, symbols []lsp.DocumentSymbol, depth int) {
	for _, s := range symbols {
		fmt.Fprintf(w, "%s%s %s  [%d:%d]", strings.Repeat("  ", depth), s.Kind, s.Name,
			s.SelectionRange.Start.Line+1, s.SelectionRange.Start.Character+1)
		if s.Detail != "" {
			fmt.Fprintf(w, "  %s", s.Detail)
		}
		fmt.Fprintln(w)
		printSymbolTree(w, s.Children, depth+1)
	}
}

func printLocationRows(w io.Writer, rows []locationRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No locations found")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s:%d:%d\n", r.File, r.Line, r.Column)
	}
}

func printCompletionRows(w io.Writer, rows []completionRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No completions")
		return
	}
	for _, r := range rows {
		line := r.Label
		if r.Kind != "" {
			line += "  " + r.Kind
		}
		if r.Detail != "" {
			line += "  " + r.Detail
		}
		fmt.Fprintln(w, line)
	}
}

func printDiagnosticRows(w io.Writer, rows []diagnosticRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No diagnostics")
		return
	}
	for _, r := range rows {
		if r.Source != "" {
			fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", r.File, r.Line, r.Column, strings.ToLower(r.Severity), r.Message, r.Source)
			continue
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", r.File, r.Line, r.Column, strings.ToLower(r.Severity), r.Message)
	}
}

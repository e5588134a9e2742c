// Package documents tracks which documents are open on the server and their
// versions.
package documents

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/protocol"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/internal/types"
)

var (
	// ErrAlreadyOpen rejects a second didOpen for the same uri
	ErrAlreadyOpen = errors.NewStateError(errors.DocumentReopened, "document is already open")
	// ErrDocumentNotOpen rejects changes, saves, closes and queries for unknown uris
	ErrDocumentNotOpen = errors.NewStateError(errors.DocumentNotOpen, "document is not open")
)

// Notifier sends a notification to the server
type Notifier interface {
	Notify(method string, params interface{}) error
}

// Tracker owns the version table. Versions start at 1 on open and increase
// by one on every change. The table lock is held while the notification is
// written so versions reach the server in order.
type Tracker struct {
	notifier Notifier
	logger   *common.SafeLogger

	mu       sync.Mutex
	versions map[string]int32
}

// NewTracker creates a tracker sending through n
func NewTracker(n Notifier, logger *common.SafeLogger) *Tracker {
	if logger == nil {
		logger = common.LSPLogger
	}
	return &Tracker{
		notifier: n,
		logger:   logger,
		versions: make(map[string]int32),
	}
}

// DidOpen registers uri at version 1 and sends didOpen
func (t *Tracker) DidOpen(uri, languageID, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uri == "" {
		return errors.NewValidationError("uri", "document uri is empty")
	}
	if _, open := t.versions[uri]; open {
		return ErrAlreadyOpen.WithOperation("didOpen "+uri, "")
	}
	if languageID == "" {
		languageID = DetectLanguage(uri)
	}

	params := lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       content,
		},
	}
	if err := t.notifier.Notify(types.MethodTextDocumentDidOpen, params); err != nil {
		return errors.WrapWithContext("didOpen "+uri, err)
	}
	t.versions[uri] = 1
	return nil
}

// DidChange replaces the full text and bumps the version
func (t *Tracker) DidChange(uri, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	version, open := t.versions[uri]
	if !open {
		return ErrDocumentNotOpen.WithOperation("didChange "+uri, "")
	}

	params := lsp.DidChangeTextDocumentParams{
		TextDocument:   lsp.VersionedTextDocumentIdentifier{URI: uri, Version: version + 1},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: content}},
	}
	if err := t.notifier.Notify(types.MethodTextDocumentDidChange, params); err != nil {
		return errors.WrapWithContext("didChange "+uri, err)
	}
	t.versions[uri] = version + 1
	return nil
}

// DidClose sends didClose and forgets the uri
func (t *Tracker) DidClose(uri string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, open := t.versions[uri]; !open {
		return ErrDocumentNotOpen.WithOperation("didClose "+uri, "")
	}
	delete(t.versions, uri)

	params := lsp.DidCloseTextDocumentParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	if err := t.notifier.Notify(types.MethodTextDocumentDidClose, params); err != nil {
		return errors.WrapWithContext("didClose "+uri, err)
	}
	return nil
}

// DidSave sends didSave; the version is unchanged
func (t *Tracker) DidSave(uri string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, open := t.versions[uri]; !open {
		return ErrDocumentNotOpen.WithOperation("didSave "+uri, "")
	}

	params := lsp.DidSaveTextDocumentParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	if err := t.notifier.Notify(types.MethodTextDocumentDidSave, params); err != nil {
		return errors.WrapWithContext("didSave "+uri, err)
	}
	return nil
}

// Version returns the current version of an open document
func (t *Tracker) Version(uri string) (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.versions[uri]
	return v, ok
}

// IsOpen reports whether uri is open
func (t *Tracker) IsOpen(uri string) bool {
	_, ok := t.Version(uri)
	return ok
}

// OpenDocuments lists open uris in sorted order
func (t *Tracker) OpenDocuments() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	uris := make([]string, 0, len(t.versions))
	for uri := range t.versions {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Reset forgets every document without notifying the server
func (t *Tracker) Reset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.versions)
	t.versions = make(map[string]int32)
	return n
}

var extensionLanguages = map[string]protocol.LanguageIdentifier{
	".c":     protocol.CLanguage,
	".h":     protocol.CppLanguage,
	".cpp":   protocol.CppLanguage,
	".cc":    protocol.CppLanguage,
	".cxx":   protocol.CppLanguage,
	".hpp":   protocol.CppLanguage,
	".hh":    protocol.CppLanguage,
	".hxx":   protocol.CppLanguage,
	".inl":   protocol.CppLanguage,
	".m":     protocol.ObjectiveCLanguage,
	".mm":    protocol.ObjectiveCppLanguage,
	".cs":    protocol.CsharpLanguage,
	".go":    protocol.GoLanguage,
	".py":    protocol.PythonLanguage,
	".pyi":   protocol.PythonLanguage,
	".js":    protocol.JavaScriptLanguage,
	".mjs":   protocol.JavaScriptLanguage,
	".jsx":   protocol.JavaScriptReactLanguage,
	".ts":    protocol.TypeScriptLanguage,
	".tsx":   protocol.TypeScriptReactLanguage,
	".java":  protocol.JavaLanguage,
	".rs":    protocol.RustLanguage,
	".rb":    protocol.RubyLanguage,
	".php":   protocol.PHPLanguage,
	".lua":   protocol.LuaLanguage,
	".swift": protocol.SwiftLanguage,
	".scala": protocol.ScalaLanguage,
	".sh":    protocol.ShellscriptLanguage,
	".json":  protocol.JSONLanguage,
	".yaml":  protocol.YamlLanguage,
	".yml":   protocol.YamlLanguage,
	".md":    protocol.MarkdownLanguage,
}

// DetectLanguage maps a path or file uri to an LSP language id. Unknown
// extensions map to "plaintext".
func DetectLanguage(pathOrURI string) string {
	p := strings.TrimPrefix(pathOrURI, "file://")
	ext := strings.ToLower(filepath.Ext(p))
	if id, ok := extensionLanguages[ext]; ok {
		return string(id)
	}
	if strings.EqualFold(filepath.Base(p), "makefile") {
		return string(protocol.MakefileLanguage)
	}
	return "plaintext"
}

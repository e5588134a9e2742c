// Package lsp holds the wire data model exchanged with language servers.
// Enumerations come from go.lsp.dev/protocol; structures are declared here so
// optional fields stay optional on the wire.
package lsp

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// Re-exported enumerations so callers need a single import.
type (
	SymbolKind         = protocol.SymbolKind
	CompletionItemKind = protocol.CompletionItemKind
	DiagnosticSeverity = protocol.DiagnosticSeverity
)

// Position is zero-based; Character counts UTF-16 code units.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is half-open: End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is accepted from definition answers and normalized to Location.
type LocationLink struct {
	OriginSelectionRange *Range `json:"originSelectionRange,omitempty"`
	TargetURI            string `json:"targetUri"`
	TargetRange          Range  `json:"targetRange"`
	TargetSelectionRange Range  `json:"targetSelectionRange"`
}

// DocumentSymbol is a node of the hierarchical outline. Children keep the
// order the server sent.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Deprecated     bool             `json:"deprecated,omitempty"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat documentSymbol answer older servers send.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Deprecated    bool       `json:"deprecated,omitempty"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// ToDocumentSymbol converts to a childless DocumentSymbol using the location
// range for both ranges.
func (s SymbolInformation) ToDocumentSymbol() DocumentSymbol {
	return DocumentSymbol{
		Name:           s.Name,
		Detail:         s.ContainerName,
		Kind:           s.Kind,
		Deprecated:     s.Deprecated,
		Range:          s.Location.Range,
		SelectionRange: s.Location.Range,
	}
}

// MarkupContent is the structured form of completion documentation.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// CompletionItem keeps the fields the client surfaces. Documentation is
// flattened to its text whether the server sent a string or MarkupContent.
type CompletionItem struct {
	Label         string             `json:"label"`
	Kind          CompletionItemKind `json:"kind,omitempty"`
	Detail        string             `json:"detail,omitempty"`
	Documentation string             `json:"documentation,omitempty"`
	SortText      string             `json:"sortText,omitempty"`
	FilterText    string             `json:"filterText,omitempty"`
	InsertText    string             `json:"insertText,omitempty"`
}

// UnmarshalJSON accepts documentation as a plain string or MarkupContent.
func (c *CompletionItem) UnmarshalJSON(data []byte) error {
	type plain CompletionItem
	var aux struct {
		plain
		Documentation json.RawMessage `json:"documentation,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CompletionItem(aux.plain)
	c.Documentation = ""
	if len(aux.Documentation) == 0 || string(aux.Documentation) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Documentation, &s); err == nil {
		c.Documentation = s
		return nil
	}
	var mc MarkupContent
	if err := json.Unmarshal(aux.Documentation, &mc); err == nil {
		c.Documentation = mc.Value
	}
	return nil
}

// CompletionList is the {items: [...]} completion answer form.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     interface{}        `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int32       `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int32  `json:"version"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentContentChangeEvent carries a full replacement when Range is nil.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type CancelParams struct {
	ID int64 `json:"id"`
}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is the first request of a session.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	RootPath              string             `json:"rootPath,omitempty"`
	RootURI               string             `json:"rootUri"`
	InitializationOptions interface{}        `json:"initializationOptions,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Workspace    WorkspaceClientCapabilities    `json:"workspace"`
}

type WorkspaceClientCapabilities struct {
	WorkspaceFolders bool `json:"workspaceFolders"`
	Configuration    bool `json:"configuration"`
}

type TextDocumentClientCapabilities struct {
	Synchronization    SynchronizationCapability    `json:"synchronization"`
	Completion         CompletionCapability         `json:"completion"`
	Hover              HoverCapability              `json:"hover"`
	Definition         LinkCapability               `json:"definition"`
	References         DynamicCapability            `json:"references"`
	DocumentSymbol     DocumentSymbolCapability     `json:"documentSymbol"`
	PublishDiagnostics PublishDiagnosticsCapability `json:"publishDiagnostics"`
}

type DynamicCapability struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
}

type SynchronizationCapability struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
	DidSave             bool `json:"didSave"`
	WillSave            bool `json:"willSave"`
}

type CompletionCapability struct {
	DynamicRegistration bool                     `json:"dynamicRegistration"`
	CompletionItem      CompletionItemCapability `json:"completionItem"`
}

type CompletionItemCapability struct {
	SnippetSupport          bool     `json:"snippetSupport"`
	DocumentationFormat     []string `json:"documentationFormat,omitempty"`
	DeprecatedSupport       bool     `json:"deprecatedSupport"`
	InsertReplaceSupport    bool     `json:"insertReplaceSupport"`
	LabelDetailsSupport     bool     `json:"labelDetailsSupport"`
	CommitCharactersSupport bool     `json:"commitCharactersSupport"`
}

type HoverCapability struct {
	DynamicRegistration bool     `json:"dynamicRegistration"`
	ContentFormat       []string `json:"contentFormat,omitempty"`
}

type LinkCapability struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
	LinkSupport         bool `json:"linkSupport"`
}

type DocumentSymbolCapability struct {
	DynamicRegistration               bool `json:"dynamicRegistration"`
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport"`
}

type PublishDiagnosticsCapability struct {
	RelatedInformation bool `json:"relatedInformation"`
	VersionSupport     bool `json:"versionSupport"`
}

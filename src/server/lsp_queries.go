package server

import (
	"bytes"
	"context"
	"encoding/json"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/internal/types"
	"lsp-indexer/src/server/protocol"
)

// Query answers that are absent, null, malformed or errors all resolve to an
// empty list. Callers cannot tell "no symbols" from "server refused".

func (s *Session) queryRequest(method, uri string, params interface{}, cont protocol.Continuation) (int64, error) {
	if err := s.requireReady(method); err != nil {
		return 0, err
	}
	if !s.docs.IsOpen(uri) {
		return 0, ErrDocumentNotOpen.WithOperation(method+" "+uri, "")
	}
	return s.engine.Request(method, params, cont)
}

// DocumentSymbolsAsync requests the symbol tree of an open document. cb runs
// on the poll goroutine.
func (s *Session) DocumentSymbolsAsync(uri string, cb func([]lsp.DocumentSymbol)) error {
	_, err := s.documentSymbols(uri, cb)
	return err
}

func (s *Session) documentSymbols(uri string, cb func([]lsp.DocumentSymbol)) (int64, error) {
	params := lsp.DocumentSymbolParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	return s.queryRequest(types.MethodTextDocumentDocumentSymbol, uri, params, func(resp protocol.Response) {
		cb(s.parseDocumentSymbols(resp))
	})
}

// DefinitionAsync requests the definition locations at pos
func (s *Session) DefinitionAsync(uri string, pos lsp.Position, cb func([]lsp.Location)) error {
	_, err := s.definition(uri, pos, cb)
	return err
}

func (s *Session) definition(uri string, pos lsp.Position, cb func([]lsp.Location)) (int64, error) {
	params := lsp.TextDocumentPositionParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}, Position: pos}
	return s.queryRequest(types.MethodTextDocumentDefinition, uri, params, func(resp protocol.Response) {
		cb(s.parseLocations(types.MethodTextDocumentDefinition, resp))
	})
}

// ReferencesAsync requests every reference to the symbol at pos, declaration
// included
func (s *Session) ReferencesAsync(uri string, pos lsp.Position, cb func([]lsp.Location)) error {
	_, err := s.references(uri, pos, cb)
	return err
}

func (s *Session) references(uri string, pos lsp.Position, cb func([]lsp.Location)) (int64, error) {
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}, Position: pos},
		Context:                    lsp.ReferenceContext{IncludeDeclaration: true},
	}
	return s.queryRequest(types.MethodTextDocumentReferences, uri, params, func(resp protocol.Response) {
		cb(s.parseLocations(types.MethodTextDocumentReferences, resp))
	})
}

// CompletionsAsync requests completion items at pos
func (s *Session) CompletionsAsync(uri string, pos lsp.Position, cb func([]lsp.CompletionItem)) error {
	_, err := s.completions(uri, pos, cb)
	return err
}

func (s *Session) completions(uri string, pos lsp.Position, cb func([]lsp.CompletionItem)) (int64, error) {
	params := lsp.TextDocumentPositionParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}, Position: pos}
	return s.queryRequest(types.MethodTextDocumentCompletion, uri, params, func(resp protocol.Response) {
		cb(s.parseCompletions(resp))
	})
}

// DocumentSymbols is the blocking form of DocumentSymbolsAsync
func (s *Session) DocumentSymbols(ctx context.Context, uri string) ([]lsp.DocumentSymbol, error) {
	return await(ctx, s, types.MethodTextDocumentDocumentSymbol, func(cb func([]lsp.DocumentSymbol)) (int64, error) {
		return s.documentSymbols(uri, cb)
	})
}

// Definition is the blocking form of DefinitionAsync
func (s *Session) Definition(ctx context.Context, uri string, pos lsp.Position) ([]lsp.Location, error) {
	return await(ctx, s, types.MethodTextDocumentDefinition, func(cb func([]lsp.Location)) (int64, error) {
		return s.definition(uri, pos, cb)
	})
}

// References is the blocking form of ReferencesAsync
func (s *Session) References(ctx context.Context, uri string, pos lsp.Position) ([]lsp.Location, error) {
	return await(ctx, s, types.MethodTextDocumentReferences, func(cb func([]lsp.Location)) (int64, error) {
		return s.references(uri, pos, cb)
	})
}

// Completions is the blocking form of CompletionsAsync
func (s *Session) Completions(ctx context.Context, uri string, pos lsp.Position) ([]lsp.CompletionItem, error) {
	return await(ctx, s, types.MethodTextDocumentCompletion, func(cb func([]lsp.CompletionItem)) (int64, error) {
		return s.completions(uri, pos, cb)
	})
}

// await issues a request and blocks for its answer. On expiry the pending
// entry is dropped and the server is told to cancel.
func await[T any](ctx context.Context, s *Session, method string, issue func(cb func(T)) (int64, error)) (T, error) {
	var zero T
	ctx, cancel := common.WithOptionalTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	result := make(chan T, 1)
	id, err := issue(func(v T) { result <- v })
	if err != nil {
		return zero, err
	}

	select {
	case v := <-result:
		return v, nil
	case <-s.closed:
		return zero, ErrSessionStopped.WithOperation(method, s.State().String())
	case <-ctx.Done():
		if s.engine.Cancel(id) {
			if err := s.engine.Notify(types.MethodCancelRequest, lsp.CancelParams{ID: id}); err != nil {
				s.logger.Debug("failed to cancel request %d: %v", id, err)
			}
		}
		return zero, errors.NewTimeoutError(method, s.opts.RequestTimeout, ctx.Err())
	}
}

func isNullResult(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (s *Session) parseDocumentSymbols(resp protocol.Response) []lsp.DocumentSymbol {
	if !resp.OK() || isNullResult(resp.Result) {
		return []lsp.DocumentSymbol{}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		s.logger.Warn("documentSymbol: unexpected result: %v", err)
		return []lsp.DocumentSymbol{}
	}
	if len(raw) == 0 {
		return []lsp.DocumentSymbol{}
	}

	// A "location" field marks the flat SymbolInformation form.
	var probe struct {
		Location *json.RawMessage `json:"location"`
	}
	_ = json.Unmarshal(raw[0], &probe)

	if probe.Location != nil {
		var infos []lsp.SymbolInformation
		if err := json.Unmarshal(resp.Result, &infos); err != nil {
			s.logger.Warn("documentSymbol: malformed SymbolInformation list: %v", err)
			return []lsp.DocumentSymbol{}
		}
		symbols := make([]lsp.DocumentSymbol, 0, len(infos))
		for _, info := range infos {
			symbols = append(symbols, info.ToDocumentSymbol())
		}
		return symbols
	}

	var symbols []lsp.DocumentSymbol
	if err := json.Unmarshal(resp.Result, &symbols); err != nil {
		s.logger.Warn("documentSymbol: malformed DocumentSymbol list: %v", err)
		return []lsp.DocumentSymbol{}
	}
	return symbols
}

// parseLocations accepts a single Location, a Location array or a
// LocationLink array.
func (s *Session) parseLocations(method string, resp protocol.Response) []lsp.Location {
	if !resp.OK() || isNullResult(resp.Result) {
		return []lsp.Location{}
	}

	trimmed := bytes.TrimSpace(resp.Result)
	if trimmed[0] == '{' {
		var loc lsp.Location
		if err := json.Unmarshal(trimmed, &loc); err != nil || loc.URI == "" {
			s.logger.Warn("%s: unexpected result object", method)
			return []lsp.Location{}
		}
		return []lsp.Location{loc}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		s.logger.Warn("%s: unexpected result: %v", method, err)
		return []lsp.Location{}
	}

	locations := make([]lsp.Location, 0, len(items))
	for _, item := range items {
		var fields struct {
			URI                  string     `json:"uri"`
			Range                *lsp.Range `json:"range"`
			TargetURI            string     `json:"targetUri"`
			TargetSelectionRange *lsp.Range `json:"targetSelectionRange"`
			TargetRange          *lsp.Range `json:"targetRange"`
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			s.logger.Debug("%s: skipping malformed location: %v", method, err)
			continue
		}
		switch {
		case fields.URI != "" && fields.Range != nil:
			locations = append(locations, lsp.Location{URI: fields.URI, Range: *fields.Range})
		case fields.TargetURI != "" && fields.TargetSelectionRange != nil:
			locations = append(locations, lsp.Location{URI: fields.TargetURI, Range: *fields.TargetSelectionRange})
		case fields.TargetURI != "" && fields.TargetRange != nil:
			locations = append(locations, lsp.Location{URI: fields.TargetURI, Range: *fields.TargetRange})
		}
	}
	return locations
}

func (s *Session) parseCompletions(resp protocol.Response) []lsp.CompletionItem {
	if !resp.OK() || isNullResult(resp.Result) {
		return []lsp.CompletionItem{}
	}

	trimmed := bytes.TrimSpace(resp.Result)
	if trimmed[0] == '{' {
		var list lsp.CompletionList
		if err := json.Unmarshal(trimmed, &list); err != nil {
			s.logger.Warn("completion: malformed list: %v", err)
			return []lsp.CompletionItem{}
		}
		if list.Items == nil {
			return []lsp.CompletionItem{}
		}
		return list.Items
	}

	var items []lsp.CompletionItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		s.logger.Warn("completion: unexpected result: %v", err)
		return []lsp.CompletionItem{}
	}
	if items == nil {
		return []lsp.CompletionItem{}
	}
	return items
}

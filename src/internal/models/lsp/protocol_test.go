package lsp

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestCompletionItemDocumentationForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `{"label":"foo","documentation":"plain doc"}`, "plain doc"},
		{"markup", `{"label":"foo","documentation":{"kind":"markdown","value":"**doc**"}}`, "**doc**"},
		{"absent", `{"label":"foo"}`, ""},
		{"null", `{"label":"foo","documentation":null}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item CompletionItem
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &item))
			assert.Equal(t, "foo", item.Label)
			assert.Equal(t, tt.want, item.Documentation)
		})
	}
}

func TestCompletionItemKeepsOtherFields(t *testing.T) {
	var item CompletionItem
	raw := `{"label":"push_back","kind":2,"detail":"void","insertText":"push_back()"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.Equal(t, protocol.CompletionItemKindMethod, item.Kind)
	assert.Equal(t, "void", item.Detail)
	assert.Equal(t, "push_back()", item.InsertText)
}

func TestSymbolInformationToDocumentSymbol(t *testing.T) {
	r := Range{Start: Position{Line: 3, Character: 1}, End: Position{Line: 9, Character: 0}}
	si := SymbolInformation{
		Name:          "main",
		Kind:          protocol.SymbolKindFunction,
		Location:      Location{URI: "file:///tmp/a.cpp", Range: r},
		ContainerName: "ns",
	}
	ds := si.ToDocumentSymbol()
	assert.Equal(t, "main", ds.Name)
	assert.Equal(t, r, ds.Range)
	assert.Equal(t, r, ds.SelectionRange)
	assert.Empty(t, ds.Children)
	assert.Equal(t, "Function", ds.Kind.String())
}

func TestContentChangeOmitsRangeForFullText(t *testing.T) {
	data, err := json.Marshal(TextDocumentContentChangeEvent{Text: "int x;"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"int x;"}`, string(data))
}

func TestPositionWireShape(t *testing.T) {
	data, err := json.Marshal(Position{Line: 3, Character: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"line":3,"character":7}`, string(data))

	var p Position
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, Position{Line: 3, Character: 7}, p)
}

func TestWireRoundTrip(t *testing.T) {
	r := Range{Start: Position{Line: 3, Character: 7}, End: Position{Line: 5, Character: 1}}
	tests := []struct {
		name  string
		value interface{}
	}{
		{"position", Position{Line: 3, Character: 7}},
		{"range", r},
		{"location", Location{URI: "file:///tmp/workspace/a.cpp", Range: r}},
		{"document symbol", DocumentSymbol{
			Name:           "Foo",
			Detail:         "class Foo",
			Kind:           protocol.SymbolKindClass,
			Range:          r,
			SelectionRange: Range{Start: Position{Line: 3, Character: 6}, End: Position{Line: 3, Character: 9}},
			Children: []DocumentSymbol{{
				Name:           "bar",
				Kind:           protocol.SymbolKindMethod,
				Range:          Range{Start: Position{Line: 4}, End: Position{Line: 4, Character: 12}},
				SelectionRange: Range{Start: Position{Line: 4, Character: 5}, End: Position{Line: 4, Character: 8}},
			}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)

			decoded := reflect.New(reflect.TypeOf(tt.value))
			require.NoError(t, json.Unmarshal(data, decoded.Interface()))
			assert.Equal(t, tt.value, decoded.Elem().Interface())
		})
	}
}

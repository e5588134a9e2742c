package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lsperrors "lsp-indexer/src/internal/errors"
)

type sentNotification struct {
	Method string
	Params map[string]interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail error
}

func (r *recordingNotifier) Notify(method string, params interface{}) error {
	if r.fail != nil {
		return r.fail
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, sentNotification{Method: method, Params: m})
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) last() sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func textDocument(n sentNotification) map[string]interface{} {
	return n.Params["textDocument"].(map[string]interface{})
}

const uri = "file:///src/a.cpp"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"Go file", "file:///test/main.go", "go"},
		{"C++ source", "file:///test/main.cpp", "cpp"},
		{"C++ header", "/test/vec.hpp", "cpp"},
		{"C file", "/test/util.c", "c"},
		{"Python file", "file:///test/script.py", "python"},
		{"JSX file", "file:///test/component.jsx", "javascriptreact"},
		{"TSX file", "file:///test/component.tsx", "typescriptreact"},
		{"Java file", "file:///test/Main.java", "java"},
		{"Rust file", "/test/lib.rs", "rust"},
		{"Makefile", "/test/Makefile", "makefile"},
		{"Unknown extension", "file:///test/data.xyz", "plaintext"},
		{"No extension", "file:///test/README", "plaintext"},
		{"Mixed case extension", "file:///test/Main.GO", "go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.uri))
		})
	}
}

func TestVersionLifecycle(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n, nil)

	require.NoError(t, tr.DidOpen(uri, "cpp", "int a;"))
	v, ok := tr.Version(uri)
	require.True(t, ok)
	assert.Equal(t, int32(1), v)
	open := n.last()
	assert.Equal(t, "textDocument/didOpen", open.Method)
	assert.Equal(t, float64(1), textDocument(open)["version"])
	assert.Equal(t, "cpp", textDocument(open)["languageId"])
	assert.Equal(t, "int a;", textDocument(open)["text"])

	for i := 2; i <= 4; i++ {
		require.NoError(t, tr.DidChange(uri, fmt.Sprintf("int a%d;", i)))
		change := n.last()
		assert.Equal(t, "textDocument/didChange", change.Method)
		assert.Equal(t, float64(i), textDocument(change)["version"])
		changes := change.Params["contentChanges"].([]interface{})
		require.Len(t, changes, 1)
		assert.Equal(t, map[string]interface{}{"text": fmt.Sprintf("int a%d;", i)}, changes[0])
	}

	require.NoError(t, tr.DidSave(uri))
	assert.Equal(t, "textDocument/didSave", n.last().Method)
	v, _ = tr.Version(uri)
	assert.Equal(t, int32(4), v)

	require.NoError(t, tr.DidClose(uri))
	assert.Equal(t, "textDocument/didClose", n.last().Method)
	assert.False(t, tr.IsOpen(uri))

	// Reopening starts over at version 1.
	require.NoError(t, tr.DidOpen(uri, "cpp", ""))
	v, _ = tr.Version(uri)
	assert.Equal(t, int32(1), v)
}

func TestRejectsInvalidTransitions(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n, nil)

	assert.ErrorIs(t, tr.DidChange(uri, "x"), ErrDocumentNotOpen)
	assert.ErrorIs(t, tr.DidSave(uri), ErrDocumentNotOpen)
	assert.ErrorIs(t, tr.DidClose(uri), ErrDocumentNotOpen)
	assert.Empty(t, n.sent)

	require.NoError(t, tr.DidOpen(uri, "", "x"))
	assert.ErrorIs(t, tr.DidOpen(uri, "", "x"), ErrAlreadyOpen)
	assert.Len(t, n.sent, 1)
	assert.Equal(t, "cpp", textDocument(n.last())["languageId"])
}

func TestDidOpenRejectsEmptyURI(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n, nil)

	err := tr.DidOpen("", "cpp", "x")
	require.Error(t, err)
	assert.Equal(t, lsperrors.InvalidURI, lsperrors.ErrorCode(err))
	assert.Empty(t, n.sent)
	assert.Empty(t, tr.OpenDocuments())
}

func TestSendFailureLeavesStateUnchanged(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("pipe closed")}
	tr := NewTracker(n, nil)

	require.Error(t, tr.DidOpen(uri, "cpp", "x"))
	assert.False(t, tr.IsOpen(uri))

	n.fail = nil
	require.NoError(t, tr.DidOpen(uri, "cpp", "x"))
	n.fail = errors.New("pipe closed")
	require.Error(t, tr.DidChange(uri, "y"))
	v, _ := tr.Version(uri)
	assert.Equal(t, int32(1), v)
}

func TestOpenDocumentsAndReset(t *testing.T) {
	tr := NewTracker(&recordingNotifier{}, nil)
	require.NoError(t, tr.DidOpen("file:///b.cpp", "cpp", ""))
	require.NoError(t, tr.DidOpen("file:///a.cpp", "cpp", ""))
	assert.Equal(t, []string{"file:///a.cpp", "file:///b.cpp"}, tr.OpenDocuments())

	assert.Equal(t, 2, tr.Reset())
	assert.Empty(t, tr.OpenDocuments())
}

func TestConcurrentChangesKeepVersionsMonotonic(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n, nil)
	require.NoError(t, tr.DidOpen(uri, "cpp", ""))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.DidChange(uri, "x"))
		}()
	}
	wg.Wait()

	v, _ := tr.Version(uri)
	assert.Equal(t, int32(21), v)

	var last float64
	for _, s := range n.sent[1:] {
		got := textDocument(s)["version"].(float64)
		assert.Greater(t, got, last)
		last = got
	}
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKind(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageKind
	}{
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"error_response", `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"nope"}}`, KindResponse},
		{"notification", `{"jsonrpc":"2.0","method":"window/logMessage","params":{}}`, KindNotification},
		{"server_request", `{"jsonrpc":"2.0","id":"abc","method":"workspace/configuration","params":{}}`, KindServerRequest},
		{"null_id_is_not_an_id", `{"jsonrpc":"2.0","id":null,"result":{}}`, KindMalformed},
		{"empty", `{"jsonrpc":"2.0"}`, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind())
		})
	}
}

func TestParseMessageRejectsInvalidJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{"jsonrpc":`))
	assert.Error(t, err)
}

func TestEncodeRequestEnvelope(t *testing.T) {
	body, err := EncodeRequest(7, "textDocument/documentSymbol", map[string]string{"uri": "file:///a.cpp"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"textDocument/documentSymbol","params":{"uri":"file:///a.cpp"}}`, string(body))
}

func TestEncodeNotificationHasNoID(t *testing.T) {
	body, err := EncodeNotification("exit", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"exit"}`, string(body))
}

func TestEncodeResponseEchoesIDAndNullResult(t *testing.T) {
	body, err := EncodeResponse(json.RawMessage(`"srv-1"`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"srv-1","result":null}`, string(body))
}

func TestResponseHasResult(t *testing.T) {
	assert.False(t, Response{}.HasResult())
	assert.False(t, Response{Result: json.RawMessage(" null ")}.HasResult())
	assert.True(t, Response{Result: json.RawMessage(`[]`)}.HasResult())
	assert.True(t, Response{Result: json.RawMessage(`{"capabilities":{}}`)}.HasResult())
}

func TestIsExpectedSuppressibleError(t *testing.T) {
	assert.False(t, IsExpectedSuppressibleError(nil))
	assert.True(t, IsExpectedSuppressibleError(&RPCError{Code: -32800, Message: "cancelled"}))
	assert.True(t, IsExpectedSuppressibleError(&RPCError{Code: -32603, Message: "No identifier found at position"}))
	assert.False(t, IsExpectedSuppressibleError(&RPCError{Code: -32603, Message: "crash"}))
}

func TestRPCErrorToLSPError(t *testing.T) {
	e := &RPCError{Code: -32601, Message: "method not found", Data: json.RawMessage(`"x"`)}
	lspErr := e.ToLSPError()
	require.NotNil(t, lspErr)
	assert.Equal(t, -32601, lspErr.Code)
	assert.Equal(t, `"x"`, lspErr.Data)

	var nilErr *RPCError
	assert.Nil(t, nilErr.ToLSPError())
}

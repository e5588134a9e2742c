package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lsp-indexer/src/internal/errors"
)

// JSON-RPC protocol constants
const (
	JSONRPCVersion = "2.0"
)

// Message is the inbound JSON-RPC 2.0 envelope. Fields stay raw until the
// message kind is known.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// MessageKind classifies an inbound envelope
type MessageKind int

const (
	KindMalformed MessageKind = iota
	KindResponse
	KindNotification
	KindServerRequest
)

func (k MessageKind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	case KindServerRequest:
		return "request"
	default:
		return "malformed"
	}
}

func hasID(id json.RawMessage) bool {
	return len(id) > 0 && !bytes.Equal(bytes.TrimSpace(id), []byte("null"))
}

// Kind routes by field presence: method+id is a server request, method alone
// a notification, id alone a response.
func (m *Message) Kind() MessageKind {
	switch {
	case m.Method != "" && hasID(m.ID):
		return KindServerRequest
	case m.Method != "":
		return KindNotification
	case hasID(m.ID):
		return KindResponse
	default:
		return KindMalformed
	}
}

// NumericID parses the id of a response to one of our requests
func (m *Message) NumericID() (int64, error) {
	raw := strings.TrimSpace(string(m.ID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric response id %s", raw)
	}
	return id, nil
}

// ParseMessage decodes one frame body
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON-RPC message: %w", err)
	}
	return &msg, nil
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ToLSPError converts to the unified error type
func (e *RPCError) ToLSPError() *errors.LSPError {
	if e == nil {
		return nil
	}
	var data interface{}
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	return errors.NewLSPError(e.Code, e.Message, data)
}

// Response is what a continuation receives. A response is a failure when
// Err is set or Result is absent.
type Response struct {
	ID     int64
	Result json.RawMessage
	Err    *RPCError
}

// HasResult reports a present, non-null result
func (r Response) HasResult() bool {
	trimmed := bytes.TrimSpace(r.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// OK reports a response without an error field
func (r Response) OK() bool {
	return r.Err == nil
}

type outboundRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type outboundNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type outboundResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
}

// EncodeRequest serializes {jsonrpc, id, method, params}
func EncodeRequest(id int64, method string, params interface{}) ([]byte, error) {
	return json.Marshal(outboundRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params})
}

// EncodeNotification serializes {jsonrpc, method, params}
func EncodeNotification(method string, params interface{}) ([]byte, error) {
	return json.Marshal(outboundNotification{JSONRPC: JSONRPCVersion, Method: method, Params: params})
}

// EncodeResponse answers a server-initiated request, echoing its id verbatim
func EncodeResponse(id json.RawMessage, result interface{}) ([]byte, error) {
	return json.Marshal(outboundResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result})
}

// IsExpectedSuppressibleError reports errors servers routinely return for
// positions without a symbol. They are logged at debug instead of warn.
func IsExpectedSuppressibleError(rpcErr *RPCError) bool {
	if rpcErr == nil {
		return false
	}
	if rpcErr.Code == errors.RequestCancelled || rpcErr.Code == errors.ContentModified {
		return true
	}
	msg := strings.ToLower(rpcErr.Message)

	suppressPatterns := []string{
		"no identifier found",
		"identifier not found",
		"symbol not found",
		"no symbol at position",
		"position out of range",
		"bad line number",
	}

	for _, pattern := range suppressPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

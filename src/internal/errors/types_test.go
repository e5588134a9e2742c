package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateErrorMatchesByCode(t *testing.T) {
	sentinel := NewStateError(SessionNotReady, "session is not ready")
	annotated := sentinel.WithOperation("textDocument/hover", "Starting")

	assert.True(t, stderrors.Is(annotated, sentinel))
	assert.True(t, stderrors.Is(fmt.Errorf("query: %w", annotated), sentinel))
	assert.False(t, stderrors.Is(annotated, NewStateError(InvalidState, "other")))
	assert.Equal(t, "textDocument/hover rejected in state Starting: session is not ready", annotated.Error())
	assert.Equal(t, "shutdown rejected: session stopped", NewStateError(SessionStopped, "session stopped").WithOperation("shutdown", "").Error())

	assert.Empty(t, sentinel.Operation, "WithOperation must not mutate the sentinel")
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"lsp", NewLSPError(MethodNotFound, "unknown method", nil), "LSP error -32601: unknown method"},
		{"lsp with data", NewLSPError(InvalidParams, "bad", "x"), "LSP error -32602: bad (data: x)"},
		{"validation", NewValidationError("command", "empty"), "validation error for parameter 'command': empty"},
		{"timeout", NewTimeoutError("initialize", 2*time.Second, nil), "timeout error for initialize operation (timeout: 2s)"},
		{"process", NewProcessError("clangd", "start", fmt.Errorf("boom")), "process error (start): clangd - boom"},
		{"remote", NewRemoteError("box", "cat /x", 1, "no such file\n", nil), "remote command on box failed (exit 1): cat /x: no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestClassification(t *testing.T) {
	cause := fmt.Errorf("pipe closed")
	tests := []struct {
		err      error
		category string
	}{
		{nil, "none"},
		{NewTimeoutError("x", time.Second, context.DeadlineExceeded), "timeout"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "timeout"},
		{NewStateError(InvalidState, "bad"), "state"},
		{NewRemoteError("box", "ls", -1, "", cause), "remote"},
		{WrapWithContext("start", NewProcessError("clangd", "start", cause)), "process"},
		{NewValidationError("uri", "empty"), "validation"},
		{cause, "general"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.category, GetErrorCategory(tt.err), "%v", tt.err)
	}

	assert.ErrorIs(t, NewProcessError("clangd", "stop", cause), cause)
	assert.ErrorIs(t, NewRemoteError("box", "ls", -1, "", cause), cause)
	assert.Nil(t, WrapWithContext("noop", nil))
}

func TestErrorCode(t *testing.T) {
	cause := fmt.Errorf("broken pipe")
	tests := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{cause, 0},
		{NewLSPError(MethodNotFound, "nope", nil), MethodNotFound},
		{NewStateError(SessionNotReady, "not ready").WithOperation("hover", "Starting"), SessionNotReady},
		{NewTimeoutError("initialize", time.Second, nil), InitializationTimeout},
		{NewTimeoutError("shutdown", time.Second, nil), ShutdownTimeout},
		{NewTimeoutError("textDocument/definition", time.Second, nil), OperationTimeout},
		{fmt.Errorf("wait: %w", context.DeadlineExceeded), OperationTimeout},
		{NewProcessError("clangd", "start", cause), ProcessStartFailure},
		{NewProcessError("clangd", "stop", cause), ProcessStopFailure},
		{WrapWithContext("send", NewProcessError("clangd", "communication", cause)), CommunicationError},
		{NewRemoteError("box", "cat /x", 1, "", nil), RemoteCommandFailed},
		{NewValidationError("uri", "empty"), InvalidURI},
		{NewValidationError("position", "line 0"), InvalidPosition},
		{NewValidationError("command", "empty"), InvalidParams},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err), "%v", tt.err)
	}
}

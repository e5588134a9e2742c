// Package errors provides unified error types and codes.
package errors

// Standard JSON-RPC error codes as defined in RFC 7309
const (
	ParseError     = -32700 // Invalid JSON was received by the server
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist / is not available
	InvalidParams  = -32602 // Invalid method parameter(s)
	InternalError  = -32603 // Internal JSON-RPC error
)

// LSP-specific error codes as defined in the LSP specification
const (
	ServerNotInitialized = -32002 // Server not initialized
	UnknownErrorCode     = -32001 // Unknown error code
	RequestCancelled     = -32800 // Request was cancelled
	ContentModified      = -32801 // Content was modified
	RequestFailed        = -32803 // Request failed with unrecoverable error
)

// Indexer custom error codes (range: -33000 to -33099)
const (
	// Connection and process errors
	ProcessStartFailure = -33002 // Failed to start LSP server process
	ProcessStopFailure  = -33003 // Failed to stop LSP server process
	CommunicationError  = -33004 // Communication error with LSP server

	// Timeout errors
	InitializationTimeout = -33010 // LSP server initialization timeout
	OperationTimeout      = -33011 // LSP operation timeout
	ShutdownTimeout       = -33012 // LSP server shutdown timeout

	// Validation errors
	InvalidURI      = -33020 // Invalid URI format
	InvalidPosition = -33021 // Invalid position (line/character)

	// Session state errors
	SessionNotReady  = -33030 // Operation attempted before the session reached Ready
	InvalidState     = -33031 // Lifecycle call made from the wrong state
	DocumentNotOpen  = -33032 // Query or change against a document that is not open
	DocumentReopened = -33033 // didOpen for a document that is already open
	SessionStopped   = -33034 // Session stopped while an operation was waiting

	// Remote execution errors
	RemoteInvalidTarget = -33040 // Remote target missing host or not enabled
	RemoteCommandFailed = -33041 // Remote command exited non-zero or could not run
)

package types

// LSP protocol lifecycle methods
const (
	// MethodInitialize is sent as the first request from client to server
	MethodInitialize = "initialize"
	// MethodInitialized is sent from client to server after the initialize response
	MethodInitialized = "initialized"
	// MethodShutdown is sent from client to server to shutdown the server
	MethodShutdown = "shutdown"
	// MethodExit is sent from client to server to exit the server process
	MethodExit = "exit"
	// MethodCancelRequest asks the server to drop an outstanding request
	MethodCancelRequest = "$/cancelRequest"
)

// LSP document synchronization methods
const (
	MethodTextDocumentDidOpen   = "textDocument/didOpen"
	MethodTextDocumentDidChange = "textDocument/didChange"
	MethodTextDocumentDidClose  = "textDocument/didClose"
	MethodTextDocumentDidSave   = "textDocument/didSave"
)

// LSP language feature methods
const (
	// MethodTextDocumentDefinition provides go-to-definition functionality
	MethodTextDocumentDefinition = "textDocument/definition"
	// MethodTextDocumentReferences finds all references to a symbol
	MethodTextDocumentReferences = "textDocument/references"
	// MethodTextDocumentDocumentSymbol returns document symbols outline
	MethodTextDocumentDocumentSymbol = "textDocument/documentSymbol"
	// MethodTextDocumentCompletion provides auto-completion suggestions
	MethodTextDocumentCompletion = "textDocument/completion"
)

// Server-initiated methods
const (
	// MethodPublishDiagnostics carries the full diagnostic set for one document
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	// MethodWorkspaceConfiguration is a server request for client settings
	MethodWorkspaceConfiguration = "workspace/configuration"
)

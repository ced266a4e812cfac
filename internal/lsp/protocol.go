package lsp

import (
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

const (
	methodInitialize         = "initialize"
	methodInitialized        = "initialized"
	methodShutdown           = "shutdown"
	methodExit               = "exit"
	methodCancelRequest      = "$/cancelRequest"
	methodDidOpen            = "textDocument/didOpen"
	methodDidChange          = "textDocument/didChange"
	methodDidClose           = "textDocument/didClose"
	methodCompletion         = "textDocument/completion"
	methodCompletionResolve  = "completionItem/resolve"
	methodRegisterCapability = "client/registerCapability"
)

// Error codes defined by LSP on top of JSON-RPC.
const (
	codeServerNotInitialized jsonrpc2.Code = -32002
	codeRequestCancelled     jsonrpc2.Code = -32800
)

const serverName = "unified-markup-lsp"

// Version is reported to clients in the initialize result.
var Version = "dev"

type cancelParams struct {
	ID jsonrpc2.ID `json:"id"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type textDocumentSyncOptions struct {
	OpenClose bool                          `json:"openClose"`
	Change    protocol.TextDocumentSyncKind `json:"change"`
}

type serverCapabilities struct {
	TextDocumentSync   textDocumentSyncOptions     `json:"textDocumentSync"`
	CompletionProvider *protocol.CompletionOptions `json:"completionProvider,omitempty"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

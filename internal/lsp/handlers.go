package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

type clientCapabilities struct {
	markdown          bool
	dynamicCompletion bool
}

// parseClientCapabilities reads the few client capabilities the server acts
// on. Markdown is used when the client lists it before plain text.
func parseClientCapabilities(raw json.RawMessage) clientCapabilities {
	completion := gjson.GetBytes(raw, "capabilities.textDocument.completion")

	var caps clientCapabilities
	caps.dynamicCompletion = completion.Get("dynamicRegistration").Bool()
formats:
	for _, f := range completion.Get("completionItem.documentationFormat").Array() {
		switch protocol.MarkupKind(f.String()) {
		case protocol.Markdown:
			caps.markdown = true
			break formats
		case protocol.PlainText:
			break formats
		}
	}
	return caps
}

// handle dispatches one incoming message. Returning an error from a
// handler tears down the connection, so failures are always replied.
func (s *session) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	logger := s.logger.With(zap.String("method", req.Method()))

	switch req.Method() {
	case methodInitialize:
		result, err := s.initialize(req.Params())
		return reply(ctx, result, err)
	case methodExit:
		s.exit()
		return reply(ctx, nil, nil)
	case methodCancelRequest:
		var params cancelParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			logger.Debug("Malformed cancel request", zap.Error(err))
			return reply(ctx, nil, nil)
		}
		s.cancel(params.ID)
		return reply(ctx, nil, nil)
	}

	switch s.currentState() {
	case stateCreated:
		if _, isCall := req.(*jsonrpc2.Call); isCall {
			return reply(ctx, nil, jsonrpc2.NewError(codeServerNotInitialized, "server not initialized"))
		}
		logger.Debug("Dropping notification before initialize")
		return reply(ctx, nil, nil)
	case stateShutdown:
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch req.Method() {
	case methodInitialized:
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.registerCompletion(ctx)
		}()
		return reply(ctx, nil, nil)
	case methodShutdown:
		s.shutdown()
		return reply(ctx, nil, nil)
	case methodDidOpen:
		return reply(ctx, nil, s.didOpen(ctx, req.Params()))
	case methodDidChange:
		return reply(ctx, nil, s.didChange(ctx, req.Params()))
	case methodDidClose:
		return reply(ctx, nil, s.didClose(ctx, req.Params()))
	case methodCompletion:
		s.workers.Go(func() {
			result, err := s.completion(ctx, req.Params())
			s.replyAsync(ctx, reply, result, err, logger)
		})
		return nil
	case methodCompletionResolve:
		s.workers.Go(func() {
			result, err := s.resolve(ctx, req.Params())
			s.replyAsync(ctx, reply, result, err, logger)
		})
		return nil
	}

	if _, isCall := req.(*jsonrpc2.Call); isCall {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method())))
	}
	return reply(ctx, nil, nil)
}

// replyAsync answers a request served on the worker pool. The request's ctx
// may already be cancelled, and the stream refuses writes under a done
// context, so the reply is written without its cancellation.
func (s *session) replyAsync(ctx context.Context, reply jsonrpc2.Replier, result any, err error, logger *zap.Logger) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Debug("Request cancelled")
		err = jsonrpc2.NewError(codeRequestCancelled, "request cancelled")
		result = nil
	}
	if rerr := reply(context.WithoutCancel(ctx), result, err); rerr != nil {
		logger.Debug("Failed to reply", zap.Error(rerr))
	}
}

func invalidParams(err error) error {
	return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
}

func (s *session) didOpen(ctx context.Context, raw json.RawMessage) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return invalidParams(err)
	}
	doc := params.TextDocument
	if err := s.project.Open(ctx, uri.URI(doc.URI), string(doc.LanguageID), doc.Version, doc.Text); err != nil {
		s.logger.Warn("Failed to open document", zap.String("uri", string(doc.URI)), zap.Error(err))
	}
	return nil
}

func (s *session) didChange(ctx context.Context, raw json.RawMessage) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return invalidParams(err)
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change holds the whole text.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	docURI := uri.URI(params.TextDocument.URI)
	if err := s.project.Change(ctx, docURI, params.TextDocument.Version, text); err != nil {
		s.logger.Warn("Failed to change document", zap.String("uri", string(docURI)), zap.Error(err))
	}
	return nil
}

func (s *session) didClose(ctx context.Context, raw json.RawMessage) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return invalidParams(err)
	}
	docURI := uri.URI(params.TextDocument.URI)
	if err := s.project.Close(ctx, docURI); err != nil {
		s.logger.Warn("Failed to close document", zap.String("uri", string(docURI)), zap.Error(err))
	}
	return nil
}

func (s *session) completion(ctx context.Context, raw json.RawMessage) (*protocol.CompletionList, error) {
	var params protocol.CompletionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams(err)
	}
	pos := markup.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	}
	return s.completionService().Complete(ctx, uri.URI(params.TextDocument.URI), pos)
}

func (s *session) resolve(ctx context.Context, raw json.RawMessage) (*protocol.CompletionItem, error) {
	var item protocol.CompletionItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, invalidParams(err)
	}
	resolved, err := s.completionService().Resolve(ctx, item)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

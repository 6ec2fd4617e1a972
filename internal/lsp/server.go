package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"lintfix/internal/config"
	"lintfix/internal/lint"
	"lintfix/internal/observ"
	"lintfix/internal/source"
	"lintfix/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

const (
	// CommandFixAll applies every separable fix of a document through workspace/applyEdit.
	CommandFixAll = "lintfix.fixAll"
	// KindSourceFixAll is the code action kind for fix-all requests.
	KindSourceFixAll = "source.fixAll.lintfix"
	kindQuickFix     = "quickfix"
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Linter         lint.Linter
	Debounce       time.Duration
	MaxDiagnostics int
	// Run is config.RunOnType or config.RunOnSave.
	Run       string
	FixOnSave bool
	Trace     bool
	Logger    *slog.Logger
	// Workspace reloads configuration once the client names its root.
	// Nil keeps the options above for the whole session.
	Workspace func(root string) (Workspace, error)
}

// Workspace is the per-root configuration returned by ServerOptions.Workspace.
// A nil Linter, zero MaxDiagnostics or empty Run keeps the current value.
type Workspace struct {
	Linter         lint.Linter
	MaxDiagnostics int
	Run            string
	FixOnSave      bool
}

// Server handles stdio JSON-RPC for the lintfix language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	log    *slog.Logger

	mu                sync.Mutex
	docs              map[string]*session
	published         map[string]struct{}
	pending           map[string]string
	workspaceRoot     string
	loadWorkspace     func(root string) (Workspace, error)
	shutdownRequested bool
	debounce          time.Duration
	debounceTimer     *time.Timer
	lintCancel        context.CancelFunc
	lintSeq           uint64
	latestSeq         uint64
	runMode           string
	fixOnSave         bool
	traceLSP          bool

	linter         lint.Linter
	maxDiagnostics int
	baseCtx        context.Context
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	maxDiagnostics := opts.MaxDiagnostics
	if maxDiagnostics <= 0 {
		maxDiagnostics = 100
	}
	runMode := opts.Run
	if runMode != config.RunOnSave {
		runMode = config.RunOnType
	}
	logger := opts.Logger
	if logger == nil {
		logger = observ.NewDiscardLogger()
	}
	return &Server{
		in:             bufio.NewReader(in),
		out:            bufio.NewWriter(out),
		log:            logger.With("component", "lsp"),
		docs:           make(map[string]*session),
		published:      make(map[string]struct{}),
		pending:        make(map[string]string),
		debounce:       debounce,
		runMode:        runMode,
		fixOnSave:      opts.FixOnSave,
		traceLSP:       opts.Trace,
		linter:         opts.Linter,
		maxDiagnostics: maxDiagnostics,
		loadWorkspace:  opts.Workspace,
		baseCtx:        context.Background(),
	}
}

// Run serves LSP requests until exit or EOF.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.stopLint()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("failed to parse message", "err", err)
			continue
		}
		if msg.Method == "" {
			s.handleResponse(&msg)
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/willSave":
		return nil
	case "textDocument/willSaveWaitUntil":
		return s.handleWillSaveWaitUntil(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "$/cancelRequest", "$/setTrace":
		return nil
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()
	s.enterWorkspace(root)
	// initializationOptions use the same shape as workspace settings
	s.applySettings(params.InitializationOptions)

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose:         true,
				Change:            2,
				WillSaveWaitUntil: true,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			CodeActionProvider: &codeActionOptions{
				CodeActionKinds: []string{kindQuickFix, KindSourceFixAll},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{CommandFixAll},
			},
		},
		ServerInfo: &serverInfo{Name: "lintfix", Version: version.Version},
	}
	s.log.Info("initialize", "root", root)
	return s.sendResponse(msg.ID, result)
}

// enterWorkspace swaps in the configuration found for root. A failed load
// keeps the startup configuration.
func (s *Server) enterWorkspace(root string) {
	if root == "" || s.loadWorkspace == nil {
		return
	}
	ws, err := s.loadWorkspace(root)
	if err != nil {
		s.log.Warn("workspace config ignored", "root", root, "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspaceRoot != root {
		return
	}
	if ws.Linter != nil {
		s.linter = ws.Linter
	}
	if ws.MaxDiagnostics > 0 {
		s.maxDiagnostics = ws.MaxDiagnostics
	}
	switch ws.Run {
	case config.RunOnType, config.RunOnSave:
		s.runMode = ws.Run
	}
	s.fixOnSave = ws.FixOnSave
	s.log.Debug("workspace config", "root", root)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.stopLint()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	doc := source.NewDocument(uriToPath(uri), params.TextDocument.Version, params.TextDocument.Text)
	doc.Flags |= source.FlagVirtual
	s.mu.Lock()
	s.docs[uri] = newSession(uri, doc)
	s.mu.Unlock()
	if s.currentTrace() {
		s.log.Info("didOpen", "uri", uri, "version", params.TextDocument.Version)
	}
	s.scheduleLint()
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	ss, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	text := source.ApplyChanges(ss.doc.Text, toSourceChanges(params.ContentChanges))
	ss.update(params.TextDocument.Version, text)
	trace := s.traceLSP
	onType := s.runMode == config.RunOnType
	s.mu.Unlock()
	if trace {
		s.log.Info("didChange", "uri", uri, "version", params.TextDocument.Version)
	}
	if onType {
		s.scheduleLint()
	}
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	ss, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if params.Text != nil && *params.Text != ss.doc.Text {
		ss.update(ss.doc.Version, *params.Text)
	}
	ss.dirty = true
	trace := s.traceLSP
	s.mu.Unlock()
	if trace {
		s.log.Info("didSave", "uri", uri)
	}
	s.scheduleLint()
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.docs, uri)
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	s.mu.Unlock()
	if hadDiagnostics {
		if err := s.sendPublish(uri, nil, nil); err != nil {
			s.log.Warn("failed to clear diagnostics", "uri", uri, "err", err)
		}
	}
	return nil
}

// handleResponse consumes replies to requests the server sent, i.e. workspace/applyEdit.
func (s *Server) handleResponse(msg *rpcMessage) {
	if len(msg.ID) == 0 {
		return
	}
	id := requestID(msg.ID)
	s.mu.Lock()
	uri, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != nil {
		s.log.Warn("applyEdit failed", "uri", uri, "code", msg.Error.Code, "message", msg.Error.Message)
		return
	}
	var result applyWorkspaceEditResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		s.log.Warn("applyEdit: bad result", "uri", uri, "err", err)
		return
	}
	if !result.Applied {
		s.log.Info("applyEdit rejected", "uri", uri, "reason", result.FailureReason)
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendRequest(id, method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, version *int, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Version:     version,
			Diagnostics: list,
		},
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) isLatestSeq(seq uint64) bool {
	if seq == 0 {
		return false
	}
	return seq == atomic.LoadUint64(&s.latestSeq)
}

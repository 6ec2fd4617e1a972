package lsp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"lintfix/internal/autofix"
	"lintfix/internal/diag"
)

const fixAllTitle = "Fix all auto-fixable problems"

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)

	s.mu.Lock()
	ss, ok := s.docs[uri]
	if !ok || !ss.fresh() {
		s.mu.Unlock()
		return s.sendResponse(msg.ID, []codeAction{})
	}
	actions := buildCodeActions(ss, params.TextDocument.URI, params.Context)
	s.mu.Unlock()

	return s.sendResponse(msg.ID, filterActionKinds(actions, params.Context.Only))
}

// buildCodeActions must be called with Server.mu held.
func buildCodeActions(ss *session, uri string, ctx codeActionContext) []codeAction {
	actions := make([]codeAction, 0, len(ctx.Diagnostics)+2)
	for _, ld := range ctx.Diagnostics {
		found := ss.index.Find([]diag.Diagnostic{fromLSPDiagnostic(ld)})
		if len(found) == 0 {
			continue
		}
		fix := found[0]
		actions = append(actions, codeAction{
			Title:       fmt.Sprintf("Fix this %s problem", fix.RuleID),
			Kind:        kindQuickFix,
			Diagnostics: []lspDiagnostic{ld},
			IsPreferred: true,
			Edit:        ss.workspaceEdit(uri, []autofix.RegisteredFix{fix}),
		})
	}

	// fix-all per rule only for rules the client is looking at
	seen := make(map[string]bool)
	for _, ld := range ctx.Diagnostics {
		rule := string(ld.Code)
		if rule == "" || seen[rule] {
			continue
		}
		seen[rule] = true
		fixes := ss.index.SeparatedValues(autofix.ByRule(rule))
		if len(fixes) == 0 {
			continue
		}
		actions = append(actions, codeAction{
			Title: fmt.Sprintf("Fix all '%s' problems", rule),
			Kind:  kindQuickFix,
			Edit:  ss.workspaceEdit(uri, fixes),
		})
	}

	if !ss.index.IsEmpty() {
		actions = append(actions, codeAction{
			Title: fixAllTitle,
			Kind:  KindSourceFixAll,
			Edit:  ss.workspaceEdit(uri, ss.index.SeparatedValues(nil)),
		})
	}
	return actions
}

func filterActionKinds(actions []codeAction, only []string) []codeAction {
	if len(only) == 0 {
		return actions
	}
	out := make([]codeAction, 0, len(actions))
	for _, a := range actions {
		for _, kind := range only {
			// "source" matches "source.fixAll.lintfix"
			if a.Kind == kind || strings.HasPrefix(a.Kind, kind+".") {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// workspaceEdit converts fixes registered against the linted text into a
// versioned edit. Must be called with Server.mu held.
func (ss *session) workspaceEdit(uri string, fixes []autofix.RegisteredFix) *workspaceEdit {
	return &workspaceEdit{
		DocumentChanges: []textDocumentEdit{{
			TextDocument: versionedTextDocumentIdentifier{URI: uri, Version: ss.linted.Version},
			Edits:        ss.textEdits(fixes),
		}},
	}
}

func (ss *session) textEdits(fixes []autofix.RegisteredFix) []textEdit {
	edits := make([]textEdit, 0, len(fixes))
	for _, f := range fixes {
		edits = append(edits, textEditFor(ss.linted, f.Fix))
	}
	return edits
}

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	if params.Command != CommandFixAll {
		return s.sendError(msg.ID, -32601, "unknown command "+params.Command)
	}
	if len(params.Arguments) == 0 {
		return s.sendError(msg.ID, -32602, "missing arguments")
	}
	var args fixAllArgs
	if err := json.Unmarshal(params.Arguments[0], &args); err != nil {
		return s.sendError(msg.ID, -32602, "invalid arguments")
	}
	uri := canonicalURI(args.URI)

	s.mu.Lock()
	ss, ok := s.docs[uri]
	if !ok || !ss.fresh() || ss.doc.Version != args.Version {
		s.mu.Unlock()
		if s.currentTrace() {
			s.log.Info("fixAll skipped", "uri", uri, "version", args.Version)
		}
		return s.sendResponse(msg.ID, nil)
	}
	fixes := ss.index.SeparatedValues(nil)
	edit := ss.workspaceEdit(args.URI, fixes)
	id := uuid.NewString()
	s.pending[id] = uri
	s.mu.Unlock()

	if err := s.sendResponse(msg.ID, nil); err != nil {
		return err
	}
	s.log.Debug("fixAll", "uri", uri, "version", args.Version, "fixes", len(fixes), "request", id)
	return s.sendRequest(id, "workspace/applyEdit", applyWorkspaceEditParams{
		Label: fixAllTitle,
		Edit:  *edit,
	})
}

func (s *Server) handleWillSaveWaitUntil(msg *rpcMessage) error {
	var params willSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)

	s.mu.Lock()
	ss, ok := s.docs[uri]
	if !s.fixOnSave || !ok || !ss.fresh() {
		s.mu.Unlock()
		return s.sendResponse(msg.ID, []textEdit{})
	}
	edits := ss.textEdits(ss.index.SeparatedValues(nil))
	s.mu.Unlock()
	return s.sendResponse(msg.ID, edits)
}

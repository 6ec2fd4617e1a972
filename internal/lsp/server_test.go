package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lintfix/internal/diag"
	"lintfix/internal/lint"
	"lintfix/internal/source"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	linter, err := lint.NewBuiltin()
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	var out bytes.Buffer
	server := NewServer(bytes.NewReader(nil), &out, ServerOptions{
		Linter:   linter,
		Debounce: time.Hour,
	})
	return server, &out
}

func testURI(t *testing.T) string {
	t.Helper()
	return pathToURI(filepath.Join(t.TempDir(), "doc.md"))
}

func notify(t *testing.T, s *Server, method string, params any) {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	if err := s.handleMessage(&rpcMessage{Method: method, Params: payload}); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

func request(t *testing.T, s *Server, method string, params any) {
	t.Helper()
	payload, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	if err := s.handleMessage(&rpcMessage{ID: json.RawMessage(`1`), Method: method, Params: payload}); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

// drain decodes every framed message written so far and resets the buffer.
func drain(t *testing.T, out *bytes.Buffer) []rpcMessage {
	t.Helper()
	reader := bufio.NewReader(bytes.NewReader(out.Bytes()))
	out.Reset()
	var msgs []rpcMessage
	for {
		payload, err := readMessage(reader)
		if err != nil {
			break
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func lintNow(s *Server) {
	s.stopLint()
	s.lintPending()
}

func openDoc(t *testing.T, s *Server, uri, text string, version int) {
	t.Helper()
	notify(t, s, "textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "markdown", Version: version, Text: text},
	})
}

func decodePublish(t *testing.T, msg rpcMessage) publishDiagnosticsParams {
	t.Helper()
	if msg.Method != "textDocument/publishDiagnostics" {
		t.Fatalf("expected publishDiagnostics, got %q", msg.Method)
	}
	var params publishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	return params
}

func codeActions(t *testing.T, s *Server, out *bytes.Buffer, uri string, diags []lspDiagnostic, only ...string) []codeAction {
	t.Helper()
	request(t, s, "textDocument/codeAction", codeActionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Context:      codeActionContext{Diagnostics: diags, Only: only},
	})
	msgs := drain(t, out)
	if len(msgs) != 1 {
		t.Fatalf("expected one response, got %d", len(msgs))
	}
	var actions []codeAction
	if err := json.Unmarshal(msgs[0].Result, &actions); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	return actions
}

func TestPublishDiagnosticsMapping(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "hello  \n", 1)
	lintNow(server)

	msgs := drain(t, out)
	if len(msgs) != 1 {
		t.Fatalf("expected one publish, got %d", len(msgs))
	}
	params := decodePublish(t, msgs[0])
	if params.URI != uri {
		t.Fatalf("expected uri %q, got %q", uri, params.URI)
	}
	if params.Version == nil || *params.Version != 1 {
		t.Fatalf("expected version 1, got %v", params.Version)
	}
	if len(params.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(params.Diagnostics))
	}
	got := params.Diagnostics[0]
	if got.Range.Start != (position{Line: 0, Character: 5}) || got.Range.End != (position{Line: 0, Character: 7}) {
		t.Fatalf("unexpected range: %+v", got.Range)
	}
	if got.Code != "no-trailing-spaces" || got.Severity != int(diag.SevWarning) || got.Source != lint.BuiltinSource {
		t.Fatalf("unexpected diagnostic: %+v", got)
	}
}

func TestCodeActionsForFreshIndex(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "a  b  \n", 1)
	lintNow(server)
	published := decodePublish(t, drain(t, out)[0]).Diagnostics
	if len(published) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", published)
	}

	var trailing lspDiagnostic
	for _, d := range published {
		if d.Code == "no-trailing-spaces" {
			trailing = d
		}
	}
	actions := codeActions(t, server, out, uri, []lspDiagnostic{trailing})
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %+v", actions)
	}

	quick := actions[0]
	if quick.Kind != kindQuickFix || !quick.IsPreferred || quick.Edit == nil {
		t.Fatalf("unexpected quick fix %+v", quick)
	}
	edits := quick.Edit.DocumentChanges[0].Edits
	if len(edits) != 1 || edits[0].NewText != "" || edits[0].Range.Start.Character != 4 || edits[0].Range.End.Character != 6 {
		t.Fatalf("unexpected quick fix edits %+v", edits)
	}
	if quick.Edit.DocumentChanges[0].TextDocument.Version != 1 {
		t.Fatalf("edit must target the linted version")
	}

	if actions[1].Title != "Fix all 'no-trailing-spaces' problems" {
		t.Fatalf("unexpected rule action %q", actions[1].Title)
	}

	all := actions[2]
	if all.Kind != KindSourceFixAll {
		t.Fatalf("unexpected fix-all kind %q", all.Kind)
	}
	edits = all.Edit.DocumentChanges[0].Edits
	if len(edits) != 2 || edits[0].NewText != " " || edits[1].NewText != "" {
		t.Fatalf("unexpected fix-all edits %+v", edits)
	}

	onlySource := codeActions(t, server, out, uri, []lspDiagnostic{trailing}, "source")
	if len(onlySource) != 1 || onlySource[0].Kind != KindSourceFixAll {
		t.Fatalf("only=source should keep the fix-all action, got %+v", onlySource)
	}
}

func TestCodeActionsAcceptNumericCodes(t *testing.T) {
	raw := `{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}},"code":42,"message":"m"}`
	var d lspDiagnostic
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Code != "42" {
		t.Fatalf("expected code 42, got %q", d.Code)
	}
}

func TestCodeActionsStaleIndex(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "hello  \n", 1)
	lintNow(server)
	published := decodePublish(t, drain(t, out)[0]).Diagnostics

	notify(t, server, "textDocument/didChange", didChangeTextDocumentParams{
		TextDocument: versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{
			Range: &lspRange{Start: position{Line: 0, Character: 0}, End: position{Line: 0, Character: 0}},
			Text:  "# ",
		}},
	})
	server.stopLint()

	if actions := codeActions(t, server, out, uri, published); len(actions) != 0 {
		t.Fatalf("stale index must not offer actions, got %+v", actions)
	}

	server.lintPending()
	params := decodePublish(t, drain(t, out)[0])
	if *params.Version != 2 || params.Diagnostics[0].Range.Start.Character != 7 {
		t.Fatalf("unexpected relint result %+v", params)
	}
	if actions := codeActions(t, server, out, uri, params.Diagnostics); len(actions) == 0 {
		t.Fatalf("fresh index should offer actions")
	}
}

func TestStaleLintResultIsDiscarded(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "hello  \n", 1)
	server.stopLint()

	server.mu.Lock()
	old := server.docs[uri].doc
	server.docs[uri].update(2, "hello\n")
	server.mu.Unlock()

	diags, err := server.linter.Lint(context.Background(), old)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	server.applyLint(lintJob{uri: uri, doc: old}, diags)
	if msgs := drain(t, out); len(msgs) != 0 {
		t.Fatalf("stale result must not be published, got %d messages", len(msgs))
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if !server.docs[uri].index.IsEmpty() || server.docs[uri].linted != nil {
		t.Fatalf("stale result must not reach the index")
	}
}

func TestExecuteFixAllSendsApplyEdit(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "a  b  \n", 3)
	lintNow(server)
	drain(t, out)

	args, _ := json.Marshal(fixAllArgs{URI: uri, Version: 3})
	request(t, server, "workspace/executeCommand", executeCommandParams{
		Command:   CommandFixAll,
		Arguments: []json.RawMessage{args},
	})
	msgs := drain(t, out)
	if len(msgs) != 2 {
		t.Fatalf("expected response and applyEdit, got %d", len(msgs))
	}
	if msgs[0].Method != "" || string(msgs[0].Result) != "null" {
		t.Fatalf("unexpected command response %+v", msgs[0])
	}
	apply := msgs[1]
	if apply.Method != "workspace/applyEdit" {
		t.Fatalf("expected applyEdit request, got %q", apply.Method)
	}
	id := requestID(apply.ID)
	if len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
	var params applyWorkspaceEditParams
	if err := json.Unmarshal(apply.Params, &params); err != nil {
		t.Fatalf("decode applyEdit: %v", err)
	}
	change := params.Edit.DocumentChanges[0]
	if change.TextDocument.Version != 3 || len(change.Edits) != 2 {
		t.Fatalf("unexpected edit %+v", change)
	}

	server.mu.Lock()
	_, pending := server.pending[id]
	server.mu.Unlock()
	if !pending {
		t.Fatalf("applyEdit id should be pending")
	}
	server.handleResponse(&rpcMessage{ID: apply.ID, Result: json.RawMessage(`{"applied":true}`)})
	server.mu.Lock()
	_, pending = server.pending[id]
	server.mu.Unlock()
	if pending {
		t.Fatalf("response should clear the pending id")
	}
}

func TestExecuteFixAllVersionMismatch(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "a  b  \n", 3)
	lintNow(server)
	drain(t, out)

	args, _ := json.Marshal(fixAllArgs{URI: uri, Version: 2})
	request(t, server, "workspace/executeCommand", executeCommandParams{
		Command:   CommandFixAll,
		Arguments: []json.RawMessage{args},
	})
	msgs := drain(t, out)
	if len(msgs) != 1 || msgs[0].Method != "" {
		t.Fatalf("version mismatch must not send an edit, got %+v", msgs)
	}

	request(t, server, "workspace/executeCommand", executeCommandParams{Command: "other"})
	msgs = drain(t, out)
	if len(msgs) != 1 || msgs[0].Error == nil {
		t.Fatalf("unknown command should fail, got %+v", msgs)
	}
}

func TestWillSaveWaitUntilHonorsFixOnSave(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "x  \n", 1)
	lintNow(server)
	drain(t, out)

	willSave := func() []textEdit {
		request(t, server, "textDocument/willSaveWaitUntil", willSaveTextDocumentParams{
			TextDocument: textDocumentIdentifier{URI: uri},
			Reason:       1,
		})
		msgs := drain(t, out)
		var edits []textEdit
		if err := json.Unmarshal(msgs[0].Result, &edits); err != nil {
			t.Fatalf("decode edits: %v", err)
		}
		return edits
	}

	if edits := willSave(); len(edits) != 0 {
		t.Fatalf("fixOnSave is off, got %+v", edits)
	}
	notify(t, server, "workspace/didChangeConfiguration", didChangeConfigurationParams{
		Settings: json.RawMessage(`{"lintfix":{"fixOnSave":true}}`),
	})
	edits := willSave()
	if len(edits) != 1 || edits[0].Range.Start.Character != 1 || edits[0].Range.End.Character != 3 {
		t.Fatalf("unexpected save edits %+v", edits)
	}
}

func TestRunOnSaveSkipsLintOnChange(t *testing.T) {
	server, _ := newTestServer(t)
	uri := testURI(t)
	notify(t, server, "workspace/didChangeConfiguration", didChangeConfigurationParams{
		Settings: json.RawMessage(`{"lintfix":{"run":"onSave","trace":true}}`),
	})
	openDoc(t, server, uri, "one\n", 1)
	server.stopLint()

	notify(t, server, "textDocument/didChange", didChangeTextDocumentParams{
		TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{Text: "two\n"}},
	})
	server.mu.Lock()
	scheduled := server.debounceTimer != nil
	text := server.docs[uri].doc.Text
	server.mu.Unlock()
	if scheduled {
		t.Fatalf("onSave mode must not lint on change")
	}
	if text != "two\n" {
		t.Fatalf("full sync not applied: %q", text)
	}

	saved := "three\n"
	notify(t, server, "textDocument/didSave", didSaveTextDocumentParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Text:         &saved,
	})
	server.mu.Lock()
	scheduled = server.debounceTimer != nil
	text = server.docs[uri].doc.Text
	server.mu.Unlock()
	if !scheduled || text != saved {
		t.Fatalf("save should update text and schedule lint, got %q scheduled=%v", text, scheduled)
	}
	server.stopLint()
}

func TestDidCloseClearsDiagnostics(t *testing.T) {
	server, out := newTestServer(t)
	uri := testURI(t)
	openDoc(t, server, uri, "hello  \n", 1)
	lintNow(server)
	drain(t, out)

	notify(t, server, "textDocument/didClose", didCloseTextDocumentParams{
		TextDocument: textDocumentIdentifier{URI: uri},
	})
	msgs := drain(t, out)
	if len(msgs) != 1 {
		t.Fatalf("expected one clearing publish, got %d", len(msgs))
	}
	if params := decodePublish(t, msgs[0]); len(params.Diagnostics) != 0 {
		t.Fatalf("expected empty diagnostics, got %+v", params.Diagnostics)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.docs) != 0 {
		t.Fatalf("session should be dropped")
	}
}

func frame(msgs ...string) []byte {
	var buf bytes.Buffer
	for _, m := range msgs {
		_ = writeMessage(&buf, []byte(m))
	}
	return buf.Bytes()
}

func TestRunLifecycle(t *testing.T) {
	in := frame(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":"file:///tmp"}}`,
		`{"jsonrpc":"2.0","method":"initialized","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"textDocument/hover","params":{}}`,
		`{"jsonrpc":"2.0","id":3,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","method":"exit"}`,
	)
	var out bytes.Buffer
	server := NewServer(bytes.NewReader(in), &out, ServerOptions{Debounce: time.Hour})
	if err := server.Run(context.Background()); !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}

	msgs := drain(t, &out)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(msgs))
	}
	var init initializeResult
	if err := json.Unmarshal(msgs[0].Result, &init); err != nil {
		t.Fatalf("decode initialize: %v", err)
	}
	if init.Capabilities.CodeActionProvider == nil || init.Capabilities.ExecuteCommandProvider.Commands[0] != CommandFixAll {
		t.Fatalf("unexpected capabilities %+v", init.Capabilities)
	}
	if !init.Capabilities.TextDocumentSync.WillSaveWaitUntil || init.Capabilities.TextDocumentSync.Change != 2 {
		t.Fatalf("unexpected sync options %+v", init.Capabilities.TextDocumentSync)
	}
	if msgs[1].Error == nil || msgs[1].Error.Code != -32601 {
		t.Fatalf("unknown method should fail with -32601, got %+v", msgs[1])
	}
}

func TestRunExitWithoutShutdown(t *testing.T) {
	in := frame(`{"jsonrpc":"2.0","method":"exit"}`)
	server := NewServer(bytes.NewReader(in), &bytes.Buffer{}, ServerOptions{})
	if err := server.Run(context.Background()); !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("expected ErrExitWithoutShutdown, got %v", err)
	}
}

func TestCanonicalURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a b.md")
	uri := pathToURI(path)
	if !strings.Contains(uri, "a%20b.md") {
		t.Fatalf("expected escaped uri, got %q", uri)
	}
	if got := canonicalURI(uri); got != uri {
		t.Fatalf("canonicalURI changed a canonical uri: %q", got)
	}
	if got := canonicalURI("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Fatalf("non-file uri must be kept, got %q", got)
	}
	if got := uriToPath(uri); got != path {
		t.Fatalf("uriToPath = %q, want %q", got, path)
	}
}

func TestTextEditUsesUTF16Columns(t *testing.T) {
	doc := source.NewDocument("x.md", 1, "héllo  \n")
	edit := textEditFor(doc, diag.Fix{Range: diag.OffsetRange{From: 6, To: 8}})
	if edit.Range.Start.Character != 5 || edit.Range.End.Character != 7 {
		t.Fatalf("unexpected range %+v", edit.Range)
	}
}

type brokenLinter struct{}

func (brokenLinter) Name() string { return "broken" }

func (brokenLinter) Lint(context.Context, *source.Document) ([]diag.Diagnostic, error) {
	return nil, lint.ErrLinterFailed
}

func TestBrokenLinterKeepsOtherDiagnostics(t *testing.T) {
	builtin, err := lint.NewBuiltin()
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	var out bytes.Buffer
	server := NewServer(bytes.NewReader(nil), &out, ServerOptions{
		Linter:   lint.Multi{brokenLinter{}, builtin},
		Debounce: time.Hour,
	})
	uri := testURI(t)
	openDoc(t, server, uri, "hello  \n", 1)
	lintNow(server)

	msgs := drain(t, &out)
	if len(msgs) != 1 {
		t.Fatalf("expected one publish, got %d", len(msgs))
	}
	params := decodePublish(t, msgs[0])
	if len(params.Diagnostics) != 1 || params.Diagnostics[0].Code != "no-trailing-spaces" {
		t.Fatalf("builtin diagnostics should be published, got %+v", params.Diagnostics)
	}
	actions := codeActions(t, server, &out, uri, params.Diagnostics)
	if len(actions) == 0 {
		t.Fatalf("fixes of the working linter should be registered")
	}
}

func TestInitializeLoadsWorkspaceConfig(t *testing.T) {
	root := t.TempDir()
	builtin, err := lint.NewBuiltin()
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	var gotRoot string
	var out bytes.Buffer
	server := NewServer(bytes.NewReader(nil), &out, ServerOptions{
		Linter:   brokenLinter{},
		Debounce: time.Hour,
		Workspace: func(r string) (Workspace, error) {
			gotRoot = r
			return Workspace{Linter: builtin, MaxDiagnostics: 7, Run: "onSave", FixOnSave: true}, nil
		},
	})
	request(t, server, "initialize", initializeParams{RootURI: pathToURI(root)})
	drain(t, &out)

	if gotRoot != root {
		t.Fatalf("workspace loader got root %q, want %q", gotRoot, root)
	}
	server.mu.Lock()
	linter, maxDiags, run, fixOnSave := server.linter, server.maxDiagnostics, server.runMode, server.fixOnSave
	server.mu.Unlock()
	if linter != lint.Linter(builtin) || maxDiags != 7 || run != "onSave" || !fixOnSave {
		t.Fatalf("workspace config not applied: %T %d %q %v", linter, maxDiags, run, fixOnSave)
	}

	uri := pathToURI(filepath.Join(root, "doc.md"))
	openDoc(t, server, uri, "hello  \n", 1)
	lintNow(server)
	params := decodePublish(t, drain(t, &out)[0])
	if len(params.Diagnostics) != 1 {
		t.Fatalf("expected the workspace linter to run, got %+v", params.Diagnostics)
	}
}

func TestInitializeKeepsStartupConfigOnLoadError(t *testing.T) {
	var out bytes.Buffer
	server := NewServer(bytes.NewReader(nil), &out, ServerOptions{
		Linter:   brokenLinter{},
		Debounce: time.Hour,
		Workspace: func(string) (Workspace, error) {
			return Workspace{}, errors.New("bad config")
		},
	})
	request(t, server, "initialize", initializeParams{RootURI: pathToURI(t.TempDir())})
	msgs := drain(t, &out)
	if len(msgs) != 1 || msgs[0].Error != nil {
		t.Fatalf("initialize should still succeed: %+v", msgs)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if _, ok := server.linter.(brokenLinter); !ok {
		t.Fatalf("startup linter should be kept, got %T", server.linter)
	}
}

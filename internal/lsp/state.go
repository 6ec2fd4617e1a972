package lsp

import (
	"lintfix/internal/autofix"
	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// session is the server-side state of one open document.
// All fields are guarded by Server.mu.
type session struct {
	uri string
	doc *source.Document
	// linted is the document the index and diags were computed against.
	linted *source.Document
	index  *autofix.Index
	diags  []diag.Diagnostic
	dirty  bool
}

func newSession(uri string, doc *source.Document) *session {
	return &session{
		uri:   uri,
		doc:   doc,
		index: autofix.NewIndex(),
		dirty: true,
	}
}

// update replaces the current text, keeping the index for staleness checks.
func (ss *session) update(version int, text string) {
	ss.doc = source.NewDocument(ss.doc.Path, version, text)
	ss.dirty = true
}

// fresh reports whether the index holds fixes for the current text.
func (ss *session) fresh() bool {
	return ss.linted != nil && ss.linted == ss.doc && ss.index.Version() == ss.doc.Version
}

// record stores lint results for doc, replacing every previously registered fix.
func (ss *session) record(doc *source.Document, diags []diag.Diagnostic) {
	ss.linted = doc
	ss.diags = diags
	ss.index.Clear()
	for _, d := range diags {
		ss.index.Register(d, doc.Version, d.Code, d.Fix)
	}
}

func (s *Server) currentTrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceLSP
}

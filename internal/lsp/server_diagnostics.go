package lsp

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"lintfix/internal/diag"
	"lintfix/internal/lint"
	"lintfix/internal/source"
)

type lintJob struct {
	uri string
	doc *source.Document
}

func (s *Server) scheduleLint() {
	s.mu.Lock()
	seq := atomic.AddUint64(&s.lintSeq, 1)
	atomic.StoreUint64(&s.latestSeq, seq)
	if s.lintCancel != nil {
		s.lintCancel()
		s.lintCancel = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		if s.isLatestSeq(seq) {
			s.lintPending()
		}
	})
	s.mu.Unlock()
}

func (s *Server) stopLint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.lintCancel != nil {
		s.lintCancel()
		s.lintCancel = nil
	}
}

// lintPending lints every dirty session. Text is snapshotted under the lock
// and linted without it; a result is dropped if its session moved on meanwhile.
func (s *Server) lintPending() {
	s.mu.Lock()
	linter := s.linter
	if linter == nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.lintCancel = cancel
	jobs := make([]lintJob, 0, len(s.docs))
	for uri, ss := range s.docs {
		if !ss.dirty {
			continue
		}
		ss.dirty = false
		jobs = append(jobs, lintJob{uri: uri, doc: ss.doc})
	}
	trace := s.traceLSP
	s.mu.Unlock()
	defer cancel()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].uri < jobs[j].uri })
	for i, job := range jobs {
		start := time.Now()
		diags, err := linter.Lint(ctx, job.doc)
		if err != nil {
			if ctx.Err() != nil {
				// a newer edit cancelled this pass; the next one picks these up
				for _, rest := range jobs[i:] {
					s.markDirty(rest.uri, rest.doc)
				}
				return
			}
			if !lint.IsPartial(err) {
				s.log.Warn("lint failed", "uri", job.uri, "version", job.doc.Version, "err", err)
				continue
			}
			// what the working linters found is still published
			s.log.Warn("linter failed", "uri", job.uri, "version", job.doc.Version, "err", err)
		}
		if trace {
			s.log.Info("lint done", "uri", job.uri, "version", job.doc.Version,
				"diags", len(diags), "elapsed", time.Since(start))
		}
		s.applyLint(job, diags)
	}
}

func (s *Server) markDirty(uri string, doc *source.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.docs[uri]; ok && ss.doc == doc {
		ss.dirty = true
	}
}

func (s *Server) applyLint(job lintJob, diags []diag.Diagnostic) {
	s.mu.Lock()
	ss, ok := s.docs[job.uri]
	if !ok || ss.doc != job.doc {
		s.mu.Unlock()
		if s.currentTrace() {
			s.log.Info("lint discard", "uri", job.uri, "version", job.doc.Version, "reason", "stale")
		}
		return
	}
	// every fix is registered even when publishing is capped
	ss.record(job.doc, diags)
	s.published[job.uri] = struct{}{}
	bag := diag.NewBag(s.maxDiagnostics)
	s.mu.Unlock()

	for _, d := range diags {
		bag.Add(d)
	}
	bag.Sort()

	list := make([]lspDiagnostic, 0, bag.Len())
	for _, d := range bag.Items() {
		list = append(list, toLSPDiagnostic(d))
	}
	version := job.doc.Version
	if err := s.sendPublish(job.uri, &version, list); err != nil {
		s.log.Warn("failed to publish diagnostics", "uri", job.uri, "err", err)
	}
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	if len(s.published) == 0 {
		s.mu.Unlock()
		return
	}
	prev := s.published
	s.published = make(map[string]struct{})
	s.mu.Unlock()
	uris := make([]string, 0, len(prev))
	for uri := range prev {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		if err := s.sendPublish(uri, nil, nil); err != nil {
			s.log.Warn("failed to clear diagnostics", "uri", uri, "err", err)
		}
	}
}

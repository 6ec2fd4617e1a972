package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"lintfix/internal/autofix"
	"lintfix/internal/diag"
	"lintfix/internal/lint"
	"lintfix/internal/source"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

type failingLinter struct{}

func (failingLinter) Name() string { return "failing" }

func (failingLinter) Lint(context.Context, *source.Document) ([]diag.Diagnostic, error) {
	return nil, lint.ErrLinterFailed
}

func newBuiltin(t *testing.T, disable ...string) lint.Linter {
	t.Helper()
	b, err := lint.NewBuiltin(disable...)
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	return b
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestRunFixReachesFixpoint(t *testing.T) {
	path := writeTemp(t, t.TempDir(), "a.md", "the  the cat  \n\n\n\nend")

	res, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: newBuiltin(t),
		Mode:   ModeFix,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	fr := res.Files[0]
	if fr.Err != nil {
		t.Fatalf("file error: %v", fr.Err)
	}
	const want = "the cat\n\nend\n"
	if got := readBack(t, path); got != want {
		t.Fatalf("file content %q, want %q", got, want)
	}
	if fr.Doc.Text != want || !fr.Changed {
		t.Fatalf("unexpected result doc %q changed=%v", fr.Doc.Text, fr.Changed)
	}
	// first pass loses the doubled word to the overlapping space fix
	if fr.Passes != 2 {
		t.Fatalf("expected 2 passes, got %d", fr.Passes)
	}
	if len(fr.Applied) != 5 {
		t.Fatalf("expected 5 applied fixes, got %d", len(fr.Applied))
	}
	if fr.Bag.Len() != 0 {
		t.Fatalf("expected no remaining diagnostics, got %+v", fr.Bag.Items())
	}
	diags, applied, changed := res.Counts()
	if diags != 0 || applied != 5 || changed != 1 {
		t.Fatalf("unexpected counts %d %d %d", diags, applied, changed)
	}
}

func TestRunCheckDoesNotWrite(t *testing.T) {
	const content = "the the cat\n"
	path := writeTemp(t, t.TempDir(), "a.md", content)

	res, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: newBuiltin(t),
		Mode:   ModeCheck,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readBack(t, path); got != content {
		t.Fatalf("check modified the file: %q", got)
	}
	fr := res.Files[0]
	if fr.Changed || fr.Passes != 0 {
		t.Fatalf("check should not fix, got changed=%v passes=%d", fr.Changed, fr.Passes)
	}
	if fr.Bag.Len() != 1 || fr.Bag.Items()[0].Code != "no-doubled-words" {
		t.Fatalf("unexpected diagnostics %+v", fr.Bag.Items())
	}
	if !res.HasErrors() {
		t.Fatalf("doubled word is an error")
	}
}

func TestRunDryRunKeepsFile(t *testing.T) {
	const content = "text  \n"
	path := writeTemp(t, t.TempDir(), "a.md", content)

	res, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: newBuiltin(t),
		Mode:   ModeFix,
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readBack(t, path); got != content {
		t.Fatalf("dry run wrote the file: %q", got)
	}
	if fr := res.Files[0]; !fr.Changed || fr.Doc.Text != "text\n" {
		t.Fatalf("unexpected dry run result %q changed=%v", fr.Doc.Text, fr.Changed)
	}
}

func TestRunFilterByRule(t *testing.T) {
	path := writeTemp(t, t.TempDir(), "a.md", "a  b  \n")

	res, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: newBuiltin(t),
		Mode:   ModeFix,
		Filter: autofix.ByRule("no-trailing-spaces"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readBack(t, path); got != "a  b\n" {
		t.Fatalf("unexpected content %q", got)
	}
	items := res.Files[0].Bag.Items()
	if len(items) != 1 || items[0].Code != "no-multiple-spaces" {
		t.Fatalf("expected the filtered-out diagnostic to remain, got %+v", items)
	}
}

func TestRunPreservesLineEndings(t *testing.T) {
	path := writeTemp(t, t.TempDir(), "crlf.md", "one  \r\ntwo\r\n")

	if _, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: newBuiltin(t),
		Mode:   ModeFix,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readBack(t, path); got != "one\r\ntwo\r\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestRunReportsFileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeTemp(t, dir, "good.md", "ok\n")
	missing := filepath.Join(dir, "missing.md")
	sink := &recordingSink{}

	res, err := Run(context.Background(), Request{
		Files:    []string{good, missing},
		Linter:   failingLinter{},
		Mode:     ModeCheck,
		Progress: sink,
		Jobs:     2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(res.Files[0].Err, lint.ErrLinterFailed) {
		t.Fatalf("expected linter failure, got %v", res.Files[0].Err)
	}
	if !errors.Is(res.Files[1].Err, os.ErrNotExist) {
		t.Fatalf("expected missing file error, got %v", res.Files[1].Err)
	}
	if len(res.Failed()) != 2 || !res.HasErrors() {
		t.Fatalf("expected both files to fail")
	}

	var stages []Stage
	for _, evt := range sink.events {
		if evt.Status == StatusError {
			stages = append(stages, evt.Stage)
		}
	}
	if len(stages) != 2 {
		t.Fatalf("expected two error events, got %v", stages)
	}
}

func TestRunFixSurvivesOneBrokenLinter(t *testing.T) {
	path := writeTemp(t, t.TempDir(), "a.md", "the the cat\n")

	res, err := Run(context.Background(), Request{
		Files:  []string{path},
		Linter: lint.Multi{failingLinter{}, newBuiltin(t)},
		Mode:   ModeFix,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fr := res.Files[0]; fr.Err != nil || !fr.Changed {
		t.Fatalf("builtin fixes should still apply: err=%v changed=%v", fr.Err, fr.Changed)
	}
	if got := readBack(t, path); got != "the cat\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	if _, err := Run(context.Background(), Request{Linter: newBuiltin(t)}); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if _, err := Run(context.Background(), Request{Files: []string{"x"}}); err == nil {
		t.Fatalf("expected error without linter")
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelSink{Ch: ch}.OnEvent(Event{File: "a", Stage: StageLint, Status: StatusDone})
	got := <-ch
	if got.File != "a" || got.Stage != StageLint {
		t.Fatalf("unexpected event %+v", got)
	}
	ChannelSink{}.OnEvent(Event{})
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "b.md", "")
	writeTemp(t, dir, "a.txt", "")
	writeTemp(t, dir, "skip.go", "")
	writeTemp(t, dir, "sub/c.MD", "")
	writeTemp(t, dir, ".git/d.md", "")
	explicit := writeTemp(t, dir, "notes.rst", "")

	files, err := CollectFiles([]string{dir, explicit, filepath.Join(dir, "b.md")}, []string{".md", ".txt"})
	if err != nil {
		t.Fatalf("CollectFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "notes.rst"),
		filepath.Join(dir, "sub", "c.MD"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("CollectFiles = %v, want %v", files, want)
	}

	if _, err := CollectFiles([]string{t.TempDir()}, []string{".md"}); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

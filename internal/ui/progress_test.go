package ui

import (
	"errors"
	"strings"
	"testing"

	"lintfix/internal/batch"
)

func TestApplyEventTracksStatus(t *testing.T) {
	m := NewProgressModel("fixing", []string{"a.md", "b.md"}, nil).(*progressModel)

	steps := []struct {
		ev   batch.Event
		want string
	}{
		{batch.Event{File: "a.md", Stage: batch.StageRead, Status: batch.StatusWorking}, "reading"},
		{batch.Event{File: "a.md", Stage: batch.StageRead, Status: batch.StatusDone}, "reading"},
		{batch.Event{File: "a.md", Stage: batch.StageLint, Status: batch.StatusWorking}, "linting"},
		{batch.Event{File: "a.md", Stage: batch.StageFix, Status: batch.StatusWorking}, "fixing"},
		{batch.Event{File: "a.md", Stage: batch.StageFinish, Status: batch.StatusDone}, "done"},
	}
	for i, step := range steps {
		m.applyEvent(step.ev)
		if got := m.items[0].status; got != step.want {
			t.Fatalf("step %d: expected %q, got %q", i, step.want, got)
		}
	}
	if m.items[1].status != labelQueued {
		t.Fatalf("untouched file should stay queued, got %q", m.items[1].status)
	}
	if m.finished() != 1 {
		t.Fatalf("expected one finished file, got %d", m.finished())
	}
}

func TestApplyEventErrorIsSticky(t *testing.T) {
	m := NewProgressModel("checking", []string{"a.md"}, nil).(*progressModel)
	m.applyEvent(batch.Event{File: "a.md", Stage: batch.StageLint, Status: batch.StatusError, Err: errors.New("boom")})
	m.applyEvent(batch.Event{File: "a.md", Stage: batch.StageFinish, Status: batch.StatusDone})
	if m.items[0].status != labelError || m.failed != 1 {
		t.Fatalf("expected sticky error, got %q failed=%d", m.items[0].status, m.failed)
	}
	if cmd := m.applyEvent(batch.Event{File: "unknown.md", Stage: batch.StageRead, Status: batch.StatusWorking}); cmd != nil {
		t.Fatalf("unknown file should be ignored")
	}
}

func TestViewListsFiles(t *testing.T) {
	m := NewProgressModel("checking", []string{"a.md", "b.md"}, nil).(*progressModel)
	m.applyEvent(batch.Event{File: "b.md", Stage: batch.StageRead, Status: batch.StatusError})
	m.done = true
	out := m.View()
	for _, want := range []string{"done: checking (1/2), 1 failed", "a.md", "b.md", "queued", "error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"abcdef", 2, "ab"},
		{"日本語のファイル", 7, "日本..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

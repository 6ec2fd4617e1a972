package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

func report(path, text string, diags ...diag.Diagnostic) FileReport {
	doc := source.NewDocument(path, 1, text)
	bag := diag.NewBag(0)
	for _, d := range diags {
		bag.Add(d)
	}
	bag.Sort()
	return FileReport{Doc: doc, Bag: bag}
}

func diagAt(text string, sev diag.Severity, code string, from, to int, msg string, fix *diag.Fix) diag.Diagnostic {
	doc := source.NewDocument("", 0, text)
	return diag.Diagnostic{
		Range:    doc.RangeOf(from, to),
		Severity: sev,
		Code:     code,
		Source:   "lintfix",
		Message:  msg,
		Fix:      fix,
	}
}

func TestPathModes(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		mode    PathMode
		baseDir string
		want    string
	}{
		{"Absolute path", "/home/user/project/docs/readme.md", PathModeAbsolute, "", "/home/user/project/docs/readme.md"},
		{"Relative path", "/home/user/project/docs/readme.md", PathModeRelative, "/home/user/project", "docs/readme.md"},
		{"Basename only", "/home/user/project/docs/readme.md", PathModeBasename, "", "readme.md"},
		{"Auto keeps short relative", "docs/readme.md", PathModeAuto, "", "docs/readme.md"},
		{"Auto relative to base", "/home/user/project/docs/readme.md", PathModeAuto, "/home/user/project", "docs/readme.md"},
		{"Auto long absolute", "/very/long/absolute/path/to/some/nested/directory/file.md", PathModeAuto, "", "file.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPath(tt.path, tt.mode, tt.baseDir); got != tt.want {
				t.Errorf("formatPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPrettyHeaderAndCaret(t *testing.T) {
	const text = "hello  \nworld\n"
	d := diagAt(text, diag.SevWarning, "no-trailing-spaces", 5, 7, "Trailing whitespace",
		&diag.Fix{Range: diag.OffsetRange{From: 5, To: 7}})

	var buf bytes.Buffer
	Pretty(&buf, []FileReport{report("/tmp/project/doc.md", text, d)}, PrettyOpts{
		Context:  1,
		PathMode: PathModeBasename,
	})
	output := buf.String()

	for _, want := range []string{
		"doc.md:1:6: WARNING no-trailing-spaces: Trailing whitespace [fixable]",
		" 1 | hello  ",
		" 2 | world",
		"   |      ^~\n",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Fatalf("colors must be off, got:\n%q", output)
	}
}

func TestPrettyColor(t *testing.T) {
	const text = "a\n"
	d := diagAt(text, diag.SevError, "x", 0, 1, "boom", nil)
	var buf bytes.Buffer
	Pretty(&buf, []FileReport{report("a.md", text, d)}, PrettyOpts{Color: true})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected escape codes, got %q", buf.String())
	}
}

func TestCaretLineWideRunes(t *testing.T) {
	tests := []struct {
		text     string
		from, to int
		pad      string
		marker   string
	}{
		{"日本 x", 7, 8, "     ", "^"},
		{"\tab", 1, 3, "\t", "^~"},
		{"abc", 1, 1, " ", "^"},
		{"漢字", 0, 6, "", "^~~~"},
	}
	for _, tt := range tests {
		pad, marker := caretLine(tt.text, tt.from, tt.to)
		if pad != tt.pad || marker != tt.marker {
			t.Errorf("caretLine(%q, %d, %d) = %q, %q; want %q, %q", tt.text, tt.from, tt.to, pad, marker, tt.pad, tt.marker)
		}
	}
}

func TestPrettyFixPreview(t *testing.T) {
	const text = "let a = 42 // missing semicolon"
	fix := &diag.Fix{Range: diag.OffsetRange{From: 10, To: 10}, Text: ";"}
	d := diagAt(text, diag.SevWarning, "semi", 10, 10, "missing semicolon", fix)

	var buf bytes.Buffer
	Pretty(&buf, []FileReport{report("example.md", text, d)}, PrettyOpts{
		PathMode:    PathModeBasename,
		ShowFixes:   true,
		ShowPreview: true,
	})
	output := buf.String()
	for _, want := range []string{
		`fix: [10,10) apply=";"`,
		"preview:",
		"- let a = 42 // missing semicolon",
		"+ let a = 42; // missing semicolon",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestBuildFixEditPreviewMultiline(t *testing.T) {
	doc := source.NewDocument("x.md", 1, "a\n\n\n\nb\n")
	preview, err := buildFixEditPreview(doc, diag.Fix{Range: diag.OffsetRange{From: 3, To: 5}})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if strings.Join(preview.before, "|") != "||b" || strings.Join(preview.after, "|") != "b" {
		t.Fatalf("unexpected preview %q -> %q", preview.before, preview.after)
	}
	if _, err := buildFixEditPreview(doc, diag.Fix{Range: diag.OffsetRange{From: 3, To: 99}}); err == nil {
		t.Fatalf("expected out of bounds error")
	}
}

func TestPrettySummary(t *testing.T) {
	const text = "the the  x\n"
	reports := []FileReport{report("a.md", text,
		diagAt(text, diag.SevError, "no-doubled-words", 4, 7, "repeated", &diag.Fix{Range: diag.OffsetRange{From: 3, To: 7}}),
		diagAt(text, diag.SevWarning, "no-multiple-spaces", 7, 9, "spaces", &diag.Fix{Range: diag.OffsetRange{From: 7, To: 9}, Text: " "}),
		diagAt(text, diag.SevInfo, "no-todo", 0, 1, "todo", nil),
	)}
	var buf bytes.Buffer
	PrettySummary(&buf, reports, false)
	output := buf.String()
	if !strings.Contains(output, "3 problems (1 error, 1 warning)") {
		t.Fatalf("unexpected summary:\n%s", output)
	}
	if !strings.Contains(output, "2 problems potentially fixable") {
		t.Fatalf("expected fixable count, got:\n%s", output)
	}

	buf.Reset()
	PrettySummary(&buf, []FileReport{report("b.md", "ok\n")}, false)
	if buf.Len() != 0 {
		t.Fatalf("clean run should print nothing, got %q", buf.String())
	}
}

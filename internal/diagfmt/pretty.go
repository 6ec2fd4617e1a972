package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

type palette struct {
	path, err, warn, info, hint, code, caret, gutter, fix *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		path:   mk(color.Bold),
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgBlue, color.Bold),
		hint:   mk(color.FgCyan),
		code:   mk(color.Faint),
		caret:  mk(color.FgGreen, color.Bold),
		gutter: mk(color.FgBlue),
		fix:    mk(color.FgGreen),
	}
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	case diag.SevInfo:
		return p.info
	default:
		return p.hint
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по диапазону, затем фикс, если он есть.
func Pretty(w io.Writer, reports []FileReport, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, rep := range reports {
		if rep.Doc == nil || rep.Bag == nil {
			continue
		}
		path := formatPath(rep.Doc.Path, opts.PathMode, opts.BaseDir)
		for _, d := range rep.Bag.Items() {
			prettyOne(w, p, rep.Doc, path, d, opts)
		}
	}
}

func prettyOne(w io.Writer, p palette, doc *source.Document, path string, d diag.Diagnostic, opts PrettyOpts) {
	start := d.Range.Start
	loc := fmt.Sprintf("%s:%d:%d:", path, start.Line+1, start.Character+1)
	fmt.Fprintf(w, "%s %s %s: %s", p.path.Sprint(loc), p.severity(d.Severity).Sprint(d.Severity.String()), p.code.Sprint(d.Code), d.Message)
	if d.Fixable() {
		fmt.Fprintf(w, " %s", p.fix.Sprint("[fixable]"))
	}
	fmt.Fprintln(w)

	printContext(w, p, doc, d.Range, opts.Context)

	if opts.ShowFixes && d.Fix != nil {
		fmt.Fprintf(w, "  %s %s apply=%q\n", p.fix.Sprint("fix:"), d.Fix.Range, d.Fix.Text)
		if opts.ShowPreview {
			if preview, err := buildFixEditPreview(doc, *d.Fix); err == nil {
				fmt.Fprintln(w, "  preview:")
				for _, line := range preview.before {
					fmt.Fprintf(w, "    %s\n", p.err.Sprint("- "+line))
				}
				for _, line := range preview.after {
					fmt.Fprintf(w, "    %s\n", p.fix.Sprint("+ "+line))
				}
			}
		}
	}
}

func printContext(w io.Writer, p palette, doc *source.Document, rng source.Range, context int) {
	line := rng.Start.Line
	first := max(line-context, 0)
	last := min(line+context, doc.LineCount()-1)
	width := len(fmt.Sprint(last + 1))

	for l := first; l <= last; l++ {
		text := doc.Line(l)
		fmt.Fprintf(w, " %s %s\n", p.gutter.Sprintf("%*d |", width, l+1), text)
		if l != line {
			continue
		}
		lineStart := doc.LineStart(line)
		from := doc.OffsetAt(rng.Start) - lineStart
		to := doc.LineEnd(line) - lineStart
		if rng.End.Line == line {
			to = doc.OffsetAt(rng.End) - lineStart
		}
		pad, marker := caretLine(text, from, to)
		fmt.Fprintf(w, " %s %s%s\n", p.gutter.Sprintf("%*s |", width, ""), pad, p.caret.Sprint(marker))
	}
}

// caretLine returns the padding before the underline and the underline itself.
// Widths are measured in terminal cells so wide runes line up; tabs are kept as-is.
func caretLine(text string, from, to int) (string, string) {
	from = min(max(from, 0), len(text))
	to = min(max(to, from), len(text))

	var pad strings.Builder
	for _, r := range text[:from] {
		if r == '\t' {
			pad.WriteByte('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	span := runewidth.StringWidth(strings.ReplaceAll(text[from:to], "\t", " "))
	if span <= 1 {
		return pad.String(), "^"
	}
	return pad.String(), "^" + strings.Repeat("~", span-1)
}

// PrettySummary prints the closing problem count line.
func PrettySummary(w io.Writer, reports []FileReport, colored bool) {
	p := newPalette(colored)
	var errs, warns, others, fixable int
	for _, rep := range reports {
		if rep.Bag == nil {
			continue
		}
		for _, d := range rep.Bag.Items() {
			switch d.Severity {
			case diag.SevError:
				errs++
			case diag.SevWarning:
				warns++
			default:
				others++
			}
		}
		fixable += rep.Bag.FixableCount()
	}
	total := errs + warns + others
	if total == 0 {
		return
	}
	line := fmt.Sprintf("%s (%s, %s)", plural(total, "problem"), plural(errs, "error"), plural(warns, "warning"))
	c := p.warn
	if errs > 0 {
		c = p.err
	}
	fmt.Fprintf(w, "\n%s\n", c.Sprint(line))
	if fixable > 0 {
		fmt.Fprintf(w, "  %s\n", p.fix.Sprintf("%s potentially fixable with `lintfix fix`", plural(fixable, "problem")))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

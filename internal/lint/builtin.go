package lint

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// BuiltinSource labels diagnostics produced by the builtin rules.
const BuiltinSource = "lintfix"

// Rule is one builtin check.
type Rule struct {
	ID          string
	Description string
	Fixable     bool
	Severity    diag.Severity

	check func(c *ruleContext)
}

type ruleContext struct {
	doc      *source.Document
	rule     *Rule
	reporter diag.Reporter
}

func (c *ruleContext) report(from, to int, msg string) *diag.ReportBuilder {
	rng := c.doc.RangeOf(from, to)
	return diag.NewReportBuilder(c.reporter, c.rule.Severity, c.rule.ID, rng, msg).WithSource(BuiltinSource)
}

var builtinRules = []*Rule{
	{
		ID:          "no-trailing-spaces",
		Description: "disallow whitespace at the end of lines",
		Fixable:     true,
		Severity:    diag.SevWarning,
		check:       checkTrailingSpaces,
	},
	{
		ID:          "no-multiple-spaces",
		Description: "disallow runs of spaces between words",
		Fixable:     true,
		Severity:    diag.SevWarning,
		check:       checkMultipleSpaces,
	},
	{
		ID:          "no-doubled-words",
		Description: "disallow the same word twice in a row",
		Fixable:     true,
		Severity:    diag.SevError,
		check:       checkDoubledWords,
	},
	{
		ID:          "unicode-nfc",
		Description: "require text in Unicode normalization form C",
		Fixable:     true,
		Severity:    diag.SevWarning,
		check:       checkNFC,
	},
	{
		ID:          "eol-last",
		Description: "require a newline at the end of the document",
		Fixable:     true,
		Severity:    diag.SevWarning,
		check:       checkEOLLast,
	},
	{
		ID:          "no-consecutive-blank-lines",
		Description: "disallow more than one blank line in a row",
		Fixable:     true,
		Severity:    diag.SevWarning,
		check:       checkConsecutiveBlankLines,
	},
	{
		ID:          "no-todo",
		Description: "flag TODO: markers",
		Fixable:     false,
		Severity:    diag.SevInfo,
		check:       checkTodo,
	},
}

// Builtin runs the rules shipped with lintfix.
type Builtin struct {
	rules []*Rule
}

// NewBuiltin enables every builtin rule except the ids in disable.
// Unknown ids are returned as an error so typos in configuration surface.
func NewBuiltin(disable ...string) (*Builtin, error) {
	off := make(map[string]bool, len(disable))
	for _, id := range disable {
		if LookupRule(id) == nil {
			return nil, fmt.Errorf("unknown rule %q", id)
		}
		off[id] = true
	}
	b := &Builtin{}
	for _, r := range builtinRules {
		if !off[r.ID] {
			b.rules = append(b.rules, r)
		}
	}
	return b, nil
}

// Rules lists every builtin rule sorted by id.
func Rules() []*Rule {
	out := append([]*Rule(nil), builtinRules...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupRule returns the builtin rule with id, or nil.
func LookupRule(id string) *Rule {
	for _, r := range builtinRules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (b *Builtin) Name() string { return BuiltinSource }

func (b *Builtin) Fingerprint() string {
	return BuiltinSource + ":" + strings.Join(b.Enabled(), ",")
}

// Enabled returns the ids of the enabled rules.
func (b *Builtin) Enabled() []string {
	ids := make([]string, 0, len(b.rules))
	for _, r := range b.rules {
		ids = append(ids, r.ID)
	}
	return ids
}

func (b *Builtin) Lint(ctx context.Context, doc *source.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	reporter := diag.NewDedupReporter(diag.SliceReporter{Items: &out})
	for _, r := range b.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.check(&ruleContext{doc: doc, rule: r, reporter: reporter})
	}
	return out, nil
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}

func checkTrailingSpaces(c *ruleContext) {
	for line := 0; line < c.doc.LineCount(); line++ {
		start, end := c.doc.LineStart(line), c.doc.LineEnd(line)
		ws := end
		for ws > start && isBlank(c.doc.Text[ws-1]) {
			ws--
		}
		if ws == end {
			continue
		}
		c.report(ws, end, "Trailing whitespace").WithFix(ws, end, "").Emit()
	}
}

func checkMultipleSpaces(c *ruleContext) {
	for line := 0; line < c.doc.LineCount(); line++ {
		start, end := c.doc.LineStart(line), c.doc.LineEnd(line)
		text := c.doc.Text
		i := start
		// indentation is not a run between words
		for i < end && isBlank(text[i]) {
			i++
		}
		for i < end {
			if text[i] != ' ' {
				i++
				continue
			}
			j := i
			for j < end && text[j] == ' ' {
				j++
			}
			if j-i > 1 && j < end && !isBlank(text[j]) {
				c.report(i, j, fmt.Sprintf("Multiple spaces (%d) between words", j-i)).WithFix(i, j, " ").Emit()
			}
			i = j
		}
	}
}

type word struct {
	from, to int
}

func lineWords(text string, start, end int) []word {
	var words []word
	i := start
	for i < end {
		r, size := utf8.DecodeRuneInString(text[i:end])
		if !unicode.IsLetter(r) {
			i += size
			continue
		}
		j := i
		for j < end {
			r, size = utf8.DecodeRuneInString(text[j:end])
			if !unicode.IsLetter(r) && r != '\'' {
				break
			}
			j += size
		}
		words = append(words, word{from: i, to: j})
		i = j
	}
	return words
}

func checkDoubledWords(c *ruleContext) {
	text := c.doc.Text
	for line := 0; line < c.doc.LineCount(); line++ {
		words := lineWords(text, c.doc.LineStart(line), c.doc.LineEnd(line))
		for i := 1; i < len(words); i++ {
			prev, cur := words[i-1], words[i]
			gap := text[prev.to:cur.from]
			if strings.Trim(gap, " \t") != "" || gap == "" {
				continue
			}
			if !strings.EqualFold(text[prev.from:prev.to], text[cur.from:cur.to]) {
				continue
			}
			msg := fmt.Sprintf("%q is repeated", text[cur.from:cur.to])
			c.report(cur.from, cur.to, msg).WithFix(prev.to, cur.to, "").Emit()
		}
	}
}

func checkNFC(c *ruleContext) {
	for line := 0; line < c.doc.LineCount(); line++ {
		text := c.doc.Line(line)
		if norm.NFC.IsNormalString(text) {
			continue
		}
		start, end := c.doc.LineStart(line), c.doc.LineEnd(line)
		c.report(start, end, "Line is not in Unicode NFC").WithFix(start, end, norm.NFC.String(text)).Emit()
	}
}

func checkEOLLast(c *ruleContext) {
	n := c.doc.Len()
	if n == 0 || strings.HasSuffix(c.doc.Text, "\n") {
		return
	}
	c.report(n, n, "Missing newline at end of document").WithFix(n, n, "\n").Emit()
}

func checkConsecutiveBlankLines(c *ruleContext) {
	last := c.doc.LineCount()
	if strings.HasSuffix(c.doc.Text, "\n") {
		// the empty line after the final terminator is not a blank line
		last--
	}
	line := 0
	for line < last {
		if strings.TrimSpace(c.doc.Line(line)) != "" {
			line++
			continue
		}
		runEnd := line
		for runEnd < last && strings.TrimSpace(c.doc.Line(runEnd)) == "" {
			runEnd++
		}
		if runEnd-line > 1 {
			from := c.doc.LineStart(line + 1)
			to := c.doc.LineStart(runEnd)
			msg := fmt.Sprintf("%d consecutive blank lines", runEnd-line)
			c.report(from, to, msg).WithFix(from, to, "").Emit()
		}
		line = runEnd
	}
}

func checkTodo(c *ruleContext) {
	const marker = "TODO:"
	text := c.doc.Text
	off := 0
	for {
		i := strings.Index(text[off:], marker)
		if i < 0 {
			return
		}
		at := off + i
		off = at + len(marker)
		if at > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:at])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		c.report(at, at+len(marker), "Found TODO marker").Emit()
	}
}

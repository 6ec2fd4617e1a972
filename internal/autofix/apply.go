package autofix

import (
	"strings"
)

// SkippedFix captures a fix that Apply refused, with a reason.
type SkippedFix struct {
	Fix    RegisteredFix
	Reason string
}

// ApplyResult is the outcome of applying a batch of fixes to a text.
type ApplyResult struct {
	Text    string
	Applied []RegisteredFix
	Skipped []SkippedFix
}

// Changed reports whether at least one fix was applied.
func (r ApplyResult) Changed() bool {
	return len(r.Applied) > 0
}

// Apply rewrites text with fixes whose offsets were computed against text.
// The batch is expected to come from SeparatedValues; fixes that are out of
// bounds or still overlap an accepted fix are skipped rather than applied.
func Apply(text string, fixes []RegisteredFix) ApplyResult {
	result := ApplyResult{
		Text:    text,
		Applied: make([]RegisteredFix, 0, len(fixes)),
		Skipped: make([]SkippedFix, 0),
	}

	valid := make([]RegisteredFix, 0, len(fixes))
	for _, f := range fixes {
		r := f.Fix.Range
		if r.From < 0 || r.To < r.From || r.To > len(text) {
			result.Skipped = append(result.Skipped, SkippedFix{Fix: f, Reason: "fix range out of bounds"})
			continue
		}
		valid = append(valid, f)
	}
	sortByOffsets(valid)

	accepted := make([]RegisteredFix, 0, len(valid))
	for _, f := range valid {
		if n := len(accepted); n > 0 && overlaps(accepted[n-1], f) {
			result.Skipped = append(result.Skipped, SkippedFix{Fix: f, Reason: "conflicts with a previously applied fix"})
			continue
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return result
	}

	// offsets refer to the original text, so copy the gaps between fixes verbatim
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, f := range accepted {
		b.WriteString(text[pos:f.Fix.Range.From])
		b.WriteString(f.Fix.Text)
		pos = f.Fix.Range.To
	}
	b.WriteString(text[pos:])

	result.Text = b.String()
	result.Applied = append(result.Applied, accepted...)
	return result
}

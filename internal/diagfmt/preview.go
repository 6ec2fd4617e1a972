package diagfmt

import (
	"fmt"
	"strings"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

type fixEditPreview struct {
	before []string
	after  []string
}

// buildFixEditPreview renders the whole lines touched by fix before and after applying it.
func buildFixEditPreview(doc *source.Document, fix diag.Fix) (fixEditPreview, error) {
	if doc == nil {
		return fixEditPreview{}, fmt.Errorf("nil document")
	}
	r := fix.Range
	if r.From < 0 || r.To < r.From || r.To > doc.Len() {
		return fixEditPreview{}, fmt.Errorf("fix range %s out of bounds for %d bytes", r, doc.Len())
	}

	startLine := doc.PositionAt(r.From).Line
	endLine := doc.PositionAt(r.To).Line
	blockStart := doc.LineStart(startLine)
	blockEnd := doc.LineEnd(endLine)

	original := doc.Text[blockStart:blockEnd]
	relStart := r.From - blockStart
	relEnd := r.To - blockStart
	after := original[:relStart] + fix.Text + original[relEnd:]

	return fixEditPreview{
		before: splitPreviewLines(original),
		after:  splitPreviewLines(after),
	}, nil
}

func splitPreviewLines(content string) []string {
	if content == "" {
		return nil
	}
	// a trailing newline does not start another preview line
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

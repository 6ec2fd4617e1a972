package diag

import (
	"fmt"

	"lintfix/internal/source"
)

// OffsetRange is a half-open [From, To) byte interval into a document's text.
type OffsetRange struct {
	From int
	To   int
}

func (r OffsetRange) Len() int {
	return r.To - r.From
}

func (r OffsetRange) Empty() bool {
	return r.From == r.To
}

// Overlaps uses the half-open rule: touching intervals do not overlap.
func (r OffsetRange) Overlaps(other OffsetRange) bool {
	return r.From < other.To && other.From < r.To
}

func (r OffsetRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.From, r.To)
}

// Fix replaces the text at Range with Text.
type Fix struct {
	Range OffsetRange
	Text  string
}

type Diagnostic struct {
	Range    source.Range
	Severity Severity
	// Code is the id of the rule that reported the diagnostic.
	Code    string
	Source  string
	Message string
	Fix     *Fix
}

// Fixable reports whether the diagnostic carries a fix.
func (d Diagnostic) Fixable() bool {
	return d.Fix != nil
}

// Package autofix indexes the fixes attached to a document's diagnostics and
// picks the subset that can be applied in one batch.
//
// An Index belongs to one document session. The owner clears it before each
// lint pass, registers the fixes of the pass with the document version they were
// computed against, then either looks fixes up by diagnostic (quick fix) or asks
// for SeparatedValues (fix all). Version lets the owner notice that the document
// moved on since registration; the index itself never enforces it.
//
// SeparatedValues walks fixes by ascending (start, end) offset and keeps each one
// that starts at or after the end of the last kept fix. Touching fixes are both
// kept. The result can be applied in a single pass with Apply.
package autofix

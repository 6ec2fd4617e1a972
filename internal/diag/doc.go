// Package diag defines the diagnostic model shared by linters, the fix index,
// the language server and the CLI.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Range – half-open source.Range in LSP coordinates.
//   - Severity – LSP-numbered enum (Error, Warning, Info, Hint).
//   - Code – id of the rule that reported the problem.
//   - Source – which linter produced it ("lintfix", "textlint").
//   - Message – human oriented text; keep it short and actionable.
//   - Fix – optional replacement of a byte interval with new text.
//
// A Fix is data only. Offsets are computed against the text the linter saw; once
// that text changes the fix is meaningless and must be recomputed.
//
// # Emitting diagnostics
//
// Rules report through a Reporter. ReportBuilder chains WithSource / WithFix
// before Emit. BagReporter aggregates into a Bag, which supports sorting and
// deduplication; DedupReporter drops exact repeats before forwarding.
//
// Package diag performs no formatting or IO. Rendering lives in internal/diagfmt,
// fix selection in internal/autofix.
package diag

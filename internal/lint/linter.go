package lint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// ErrLinterFailed is returned when an external linter could not produce results.
var ErrLinterFailed = errors.New("linter failed")

// Linter reports diagnostics for a document. Fix offsets in the returned
// diagnostics are byte offsets into doc.Text.
type Linter interface {
	Name() string
	Lint(ctx context.Context, doc *source.Document) ([]diag.Diagnostic, error)
}

// Multi runs linters in order and concatenates their diagnostics.
type Multi []Linter

func (m Multi) Name() string {
	name := ""
	for i, l := range m {
		if i > 0 {
			name += "+"
		}
		name += l.Name()
	}
	return name
}

// PartialError reports linters of a Multi that failed while others succeeded.
// The diagnostics returned alongside it are complete for the successful ones.
type PartialError struct {
	Failed []LinterFailure
}

// LinterFailure is one failed linter of a Multi pass.
type LinterFailure struct {
	Linter string
	Err    error
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Linter, f.Err))
	}
	return "some linters failed: " + strings.Join(parts, "; ")
}

func (e *PartialError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}

// IsPartial reports whether err only marks some linters as failed, in which
// case the diagnostics returned with it are still usable.
func IsPartial(err error) bool {
	var partial *PartialError
	return errors.As(err, &partial)
}

// Lint runs every linter even when one fails. If all of them fail the
// joined errors are returned; if only some do, the collected diagnostics
// come back with a *PartialError.
func (m Multi) Lint(ctx context.Context, doc *source.Document) ([]diag.Diagnostic, error) {
	var (
		out    []diag.Diagnostic
		failed []LinterFailure
	)
	for _, l := range m {
		diags, err := l.Lint(ctx, doc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failed = append(failed, LinterFailure{Linter: l.Name(), Err: err})
			continue
		}
		out = append(out, diags...)
	}
	switch {
	case len(failed) == 0:
		return out, nil
	case len(failed) == len(m):
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, f.Err)
		}
		return nil, errors.Join(errs...)
	default:
		return out, &PartialError{Failed: failed}
	}
}

func (m Multi) Fingerprint() string {
	parts := make([]string, 0, len(m))
	for _, l := range m {
		parts = append(parts, Fingerprint(l))
	}
	return strings.Join(parts, "|")
}

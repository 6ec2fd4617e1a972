package lsp

import (
	"lintfix/internal/diag"
	"lintfix/internal/source"
)

func toSourcePosition(p position) source.Position {
	return source.Position{Line: p.Line, Character: p.Character}
}

func toSourceRange(r lspRange) source.Range {
	return source.Range{Start: toSourcePosition(r.Start), End: toSourcePosition(r.End)}
}

func toLSPRange(r source.Range) lspRange {
	return lspRange{
		Start: position{Line: r.Start.Line, Character: r.Start.Character},
		End:   position{Line: r.End.Line, Character: r.End.Character},
	}
}

func toSourceChanges(changes []textDocumentContentChangeEvent) []source.Change {
	out := make([]source.Change, 0, len(changes))
	for _, change := range changes {
		c := source.Change{Text: change.Text}
		if change.Range != nil {
			rng := toSourceRange(*change.Range)
			c.Range = &rng
		}
		out = append(out, c)
	}
	return out
}

func toLSPDiagnostic(d diag.Diagnostic) lspDiagnostic {
	return lspDiagnostic{
		Range:    toLSPRange(d.Range),
		Severity: int(d.Severity),
		Code:     diagnosticCode(d.Code),
		Source:   d.Source,
		Message:  d.Message,
	}
}

// fromLSPDiagnostic keeps only what slot lookup needs.
func fromLSPDiagnostic(d lspDiagnostic) diag.Diagnostic {
	return diag.Diagnostic{
		Range:   toSourceRange(d.Range),
		Code:    string(d.Code),
		Source:  d.Source,
		Message: d.Message,
	}
}

// textEditFor converts a byte-offset fix into an LSP edit against doc.
func textEditFor(doc *source.Document, fix diag.Fix) textEdit {
	return textEdit{
		Range:   toLSPRange(doc.RangeOf(fix.Range.From, fix.Range.To)),
		NewText: fix.Text,
	}
}

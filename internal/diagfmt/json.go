package diagfmt

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// LocationJSON представляет местоположение в файле; строки и колонки с единицы.
type LocationJSON struct {
	StartByte int `json:"start_byte" yaml:"start_byte"`
	EndByte   int `json:"end_byte" yaml:"end_byte"`
	StartLine int `json:"start_line" yaml:"start_line"`
	StartCol  int `json:"start_col" yaml:"start_col"`
	EndLine   int `json:"end_line" yaml:"end_line"`
	EndCol    int `json:"end_col" yaml:"end_col"`
}

// FixJSON представляет исправление
type FixJSON struct {
	Location    LocationJSON `json:"location" yaml:"location"`
	NewText     string       `json:"new_text" yaml:"new_text"`
	OldText     string       `json:"old_text,omitempty" yaml:"old_text,omitempty"`
	BeforeLines []string     `json:"before_lines,omitempty" yaml:"before_lines,omitempty"`
	AfterLines  []string     `json:"after_lines,omitempty" yaml:"after_lines,omitempty"`
}

// DiagnosticJSON представляет диагностику
type DiagnosticJSON struct {
	Severity string       `json:"severity" yaml:"severity"`
	Code     string       `json:"code" yaml:"code"`
	Source   string       `json:"source,omitempty" yaml:"source,omitempty"`
	Message  string       `json:"message" yaml:"message"`
	Location LocationJSON `json:"location" yaml:"location"`
	Fixable  bool         `json:"fixable" yaml:"fixable"`
	Fix      *FixJSON     `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// FileJSON groups the diagnostics of one file.
type FileJSON struct {
	Path        string           `json:"path" yaml:"path"`
	Diagnostics []DiagnosticJSON `json:"diagnostics" yaml:"diagnostics"`
}

// DiagnosticsOutput представляет корневую структуру вывода
type DiagnosticsOutput struct {
	Files   []FileJSON `json:"files" yaml:"files"`
	Count   int        `json:"count" yaml:"count"`
	Errors  int        `json:"errors" yaml:"errors"`
	Fixable int        `json:"fixable" yaml:"fixable"`
}

func makeLocation(doc *source.Document, from, to int) LocationJSON {
	start, end := doc.PositionAt(from), doc.PositionAt(to)
	return LocationJSON{
		StartByte: from,
		EndByte:   to,
		StartLine: start.Line + 1,
		StartCol:  start.Character + 1,
		EndLine:   end.Line + 1,
		EndCol:    end.Character + 1,
	}
}

func makeDiagnosticJSON(doc *source.Document, d diag.Diagnostic, opts JSONOpts) DiagnosticJSON {
	from, to := doc.OffsetAt(d.Range.Start), doc.OffsetAt(d.Range.End)
	out := DiagnosticJSON{
		Severity: strings.ToLower(d.Severity.String()),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
		Location: makeLocation(doc, from, to),
		Fixable:  d.Fixable(),
	}
	if opts.IncludeFixes && d.Fix != nil {
		r := d.Fix.Range
		fix := &FixJSON{
			Location: makeLocation(doc, r.From, r.To),
			NewText:  d.Fix.Text,
		}
		if r.From >= 0 && r.From <= r.To && r.To <= doc.Len() {
			fix.OldText = doc.Text[r.From:r.To]
		}
		if opts.IncludePreviews {
			if preview, err := buildFixEditPreview(doc, *d.Fix); err == nil {
				fix.BeforeLines = preview.before
				fix.AfterLines = preview.after
			}
		}
		out.Fix = fix
	}
	return out
}

// BuildDiagnosticsOutput формирует структуру вывода без сериализации.
// Files without diagnostics are omitted.
func BuildDiagnosticsOutput(reports []FileReport, opts JSONOpts) DiagnosticsOutput {
	output := DiagnosticsOutput{Files: make([]FileJSON, 0, len(reports))}
	for _, rep := range reports {
		if rep.Doc == nil || rep.Bag == nil || rep.Bag.Len() == 0 {
			continue
		}
		file := FileJSON{
			Path:        formatPath(rep.Doc.Path, opts.PathMode, opts.BaseDir),
			Diagnostics: make([]DiagnosticJSON, 0, rep.Bag.Len()),
		}
		for _, d := range rep.Bag.Items() {
			if opts.Max > 0 && output.Count >= opts.Max {
				break
			}
			file.Diagnostics = append(file.Diagnostics, makeDiagnosticJSON(rep.Doc, d, opts))
			output.Count++
			if d.Severity == diag.SevError {
				output.Errors++
			}
			if d.Fixable() {
				output.Fixable++
			}
		}
		if len(file.Diagnostics) > 0 {
			output.Files = append(output.Files, file)
		}
	}
	return output
}

// JSON форматирует диагностики в JSON.
func JSON(w io.Writer, reports []FileReport, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(reports, opts))
}

// YAML форматирует диагностики в YAML с той же структурой, что и JSON.
func YAML(w io.Writer, reports []FileReport, opts JSONOpts) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(BuildDiagnosticsOutput(reports, opts)); err != nil {
		return err
	}
	return encoder.Close()
}

package diag

import "lintfix/internal/source"

// Reporter - минимальный контракт получения диагностик от правил.
// Implementations: BagReporter, DedupReporter.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder accumulates diagnostic details before emitting to Reporter.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

// NewReportBuilder constructs a builder bound to Reporter.
func NewReportBuilder(r Reporter, sev Severity, code string, rng source.Range, msg string) *ReportBuilder {
	return &ReportBuilder{
		reporter: r,
		diag: Diagnostic{
			Severity: sev,
			Code:     code,
			Message:  msg,
			Range:    rng,
		},
	}
}

// WithSource sets the diagnostic source label.
func (b *ReportBuilder) WithSource(src string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag.Source = src
	return b
}

// WithFix attaches a replacement of [from, to) with text.
func (b *ReportBuilder) WithFix(from, to int, text string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag.Fix = &Fix{Range: OffsetRange{From: from, To: to}, Text: text}
	return b
}

// Emit sends diagnostic to underlying reporter exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.diag)
	}
	b.emitted = true
}

// Diagnostic returns accumulated diagnostic without emitting.
func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter - адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// SliceReporter appends into a slice.
type SliceReporter struct{ Items *[]Diagnostic }

func (r SliceReporter) Report(d Diagnostic) {
	if r.Items == nil {
		return
	}
	*r.Items = append(*r.Items, d)
}

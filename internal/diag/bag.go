package diag

import (
	"sort"

	"lintfix/internal/source"
)

type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag creates a bag that holds at most max diagnostics; max <= 0 means unlimited.
func NewBag(max int) *Bag {
	capacity := max
	if capacity <= 0 || capacity > 256 {
		capacity = 16
	}
	return &Bag{
		items: make([]Diagnostic, 0, capacity),
		max:   max,
	}
}

// Add добавляет диагностику, учитывая лимит.
// Returns false when the bag is full and d was dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors reports whether at least one diagnostic is an error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity.AtLeast(SevError) {
			return true
		}
	}
	return false
}

// HasWarnings reports whether at least one diagnostic is a warning or worse.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity.AtLeast(SevWarning) {
			return true
		}
	}
	return false
}

// FixableCount returns how many diagnostics carry a fix.
func (b *Bag) FixableCount() int {
	n := 0
	for i := range b.items {
		if b.items[i].Fixable() {
			n++
		}
	}
	return n
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
// The slice aliases the bag's storage; do not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Sort orders diagnostics by start, end, severity (most severe first) and code
// so output is deterministic.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Range.Start != dj.Range.Start {
			return di.Range.Start.Less(dj.Range.Start)
		}
		if di.Range.End != dj.Range.End {
			return di.Range.End.Less(dj.Range.End)
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup drops diagnostics that share range and code with an earlier one.
// The later duplicate wins, mirroring how fixes overwrite each other.
func (b *Bag) Dedup() {
	type key struct {
		rng  source.Range
		code string
	}
	last := make(map[key]int, len(b.items))
	for i, d := range b.items {
		last[key{rng: d.Range, code: d.Code}] = i
	}
	newitems := make([]Diagnostic, 0, len(last))
	for i, d := range b.items {
		if last[key{rng: d.Range, code: d.Code}] != i {
			continue
		}
		newitems = append(newitems, d)
	}
	b.items = newitems
}

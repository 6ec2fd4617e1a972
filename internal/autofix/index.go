package autofix

import (
	"fmt"
	"sort"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// NoVersion is reported by Version when the index is empty.
const NoVersion = -1

// RegisteredFix is a fix recorded for one diagnostic slot.
type RegisteredFix struct {
	// Version of the document the fix was computed against.
	Version int
	RuleID  string
	Fix     diag.Fix
}

// SlotKey identifies a diagnostic slot: same range and code means same slot.
type SlotKey struct {
	Range source.Range
	Code  string
}

// SlotKeyOf derives the slot key of d.
func SlotKeyOf(d diag.Diagnostic) SlotKey {
	return SlotKey{Range: d.Range, Code: d.Code}
}

// String renders the key as "[startLine,startChar,endLine,endChar]-code".
func (k SlotKey) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]-%s",
		k.Range.Start.Line, k.Range.Start.Character,
		k.Range.End.Line, k.Range.End.Character,
		k.Code)
}

// Index maps diagnostic slots to their fixes for a single document.
// It is not safe for concurrent use.
type Index struct {
	slots   map[SlotKey]int
	entries []RegisteredFix
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{slots: make(map[SlotKey]int)}
}

// Register records fix for d. A nil fix or an empty rule id is ignored.
// Registering the same slot again overwrites the previous fix in place.
func (x *Index) Register(d diag.Diagnostic, version int, ruleID string, fix *diag.Fix) {
	if fix == nil || ruleID == "" {
		return
	}
	entry := RegisteredFix{Version: version, RuleID: ruleID, Fix: *fix}
	key := SlotKeyOf(d)
	if i, ok := x.slots[key]; ok {
		x.entries[i] = entry
		return
	}
	if x.slots == nil {
		x.slots = make(map[SlotKey]int)
	}
	x.slots[key] = len(x.entries)
	x.entries = append(x.entries, entry)
}

// Find returns the fixes registered for diags, in input order, skipping misses.
func (x *Index) Find(diags []diag.Diagnostic) []RegisteredFix {
	out := make([]RegisteredFix, 0, len(diags))
	for _, d := range diags {
		if i, ok := x.slots[SlotKeyOf(d)]; ok {
			out = append(out, x.entries[i])
		}
	}
	return out
}

// IsEmpty reports whether no fix is registered.
func (x *Index) IsEmpty() bool {
	return len(x.entries) == 0
}

// Len returns the number of registered fixes, one per slot.
func (x *Index) Len() int {
	return len(x.entries)
}

// Version returns the document version of the oldest registered slot, or
// NoVersion when empty. It is a staleness hint: nothing stops a caller from
// mixing versions without clearing.
func (x *Index) Version() int {
	if len(x.entries) == 0 {
		return NoVersion
	}
	return x.entries[0].Version
}

// Clear drops every registered fix.
func (x *Index) Clear() {
	clear(x.slots)
	x.entries = x.entries[:0]
}

// SortedValues returns all fixes ordered by start offset, then end offset.
// Fixes with identical offsets keep registration order.
func (x *Index) SortedValues() []RegisteredFix {
	out := make([]RegisteredFix, len(x.entries))
	copy(out, x.entries)
	sortByOffsets(out)
	return out
}

// SeparatedValues returns the fixes that can be applied together in one batch.
// Candidates accepted by pred are walked in SortedValues order; each one is kept
// unless it starts before the end of the last kept fix. Touching fixes are kept.
// A nil pred accepts everything.
func (x *Index) SeparatedValues(pred func(RegisteredFix) bool) []RegisteredFix {
	candidates := make([]RegisteredFix, 0, len(x.entries))
	for _, e := range x.entries {
		if pred == nil || pred(e) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return candidates
	}
	sortByOffsets(candidates)

	result := make([]RegisteredFix, 0, len(candidates))
	result = append(result, candidates[0])
	last := candidates[0]
	for _, cur := range candidates[1:] {
		if overlaps(last, cur) {
			continue
		}
		result = append(result, cur)
		last = cur
	}
	return result
}

// ByRule returns a SeparatedValues predicate selecting fixes of ruleID.
func ByRule(ruleID string) func(RegisteredFix) bool {
	return func(f RegisteredFix) bool {
		return f.RuleID == ruleID
	}
}

// Rules lists the distinct rule ids present, sorted.
func (x *Index) Rules() []string {
	seen := make(map[string]struct{}, len(x.entries))
	out := make([]string, 0)
	for _, e := range x.entries {
		if _, ok := seen[e.RuleID]; ok {
			continue
		}
		seen[e.RuleID] = struct{}{}
		out = append(out, e.RuleID)
	}
	sort.Strings(out)
	return out
}

// overlaps reports whether next starts before prev ends; prev.To == next.From
// is not a conflict. Callers pass prev sorted before next, where this matches
// the half-open OffsetRange.Overlaps.
func overlaps(prev, next RegisteredFix) bool {
	return prev.Fix.Range.Overlaps(next.Fix.Range)
}

func sortByOffsets(fixes []RegisteredFix) {
	sort.SliceStable(fixes, func(i, j int) bool {
		ri, rj := fixes[i].Fix.Range, fixes[j].Fix.Range
		if ri.From != rj.From {
			return ri.From < rj.From
		}
		return ri.To < rj.To
	})
}

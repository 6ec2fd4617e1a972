package source

// Change is one incremental edit sent by an editor. A nil Range replaces the whole text.
type Change struct {
	Range *Range
	Text  string
}

// ApplyChanges applies editor changes in order and returns the resulting text.
func ApplyChanges(text string, changes []Change) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		doc := NewDocument("", 0, text)
		start := doc.OffsetAt(change.Range.Start)
		end := doc.OffsetAt(change.Range.End)
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

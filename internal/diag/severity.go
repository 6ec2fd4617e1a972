package diag

// Severity defines the importance of a diagnostic. Values follow the LSP numbering,
// so a smaller value is more severe.
type Severity uint8

const (
	SevError Severity = iota + 1
	SevWarning
	SevInfo
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInfo:
		return "INFO"
	case SevHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s != 0 && s <= other
}

package source

import "fmt"

// Flags encodes metadata about how a document was loaded.
type Flags uint8

const (
	// FlagVirtual indicates the document came from memory (editor buffer, stdin, test).
	FlagVirtual Flags = 1 << iota
	FlagHadBOM
	FlagNormalizedCRLF
)

// Position is a zero-based location in a document.
// Character counts UTF-16 code units, the way LSP clients do.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Less reports whether p comes strictly before other.
func (p Position) Less(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a half-open [Start, End) interval of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers no characters.
func (r Range) Empty() bool {
	return r.Start == r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

package source

import (
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is an immutable snapshot of a text at one edit generation.
// Offsets are byte offsets into Text; positions use UTF-16 characters.
type Document struct {
	Path    string
	Version int
	Text    string
	Flags   Flags

	lineIdx []uint32
}

// NewDocument builds a document and its line index.
func NewDocument(path string, version int, text string) *Document {
	return &Document{
		Path:    path,
		Version: version,
		Text:    text,
		lineIdx: buildLineIndex(text),
	}
}

// ReadFile loads a document from disk, dropping a UTF-8 BOM and normalizing CRLF.
func ReadFile(path string) (*Document, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	doc := NewDocument(normalizePath(path), 0, string(content))
	if hadBOM {
		doc.Flags |= FlagHadBOM
	}
	if hadCRLF {
		doc.Flags |= FlagNormalizedCRLF
	}
	return doc, nil
}

// Len returns the length of the text in bytes.
func (d *Document) Len() int {
	return len(d.Text)
}

// LineCount returns the number of lines; an empty text has one line.
func (d *Document) LineCount() int {
	return len(d.lineIdx) + 1
}

// LineStart returns the byte offset where line begins.
func (d *Document) LineStart(line int) int {
	if line <= 0 {
		return 0
	}
	if line > len(d.lineIdx) {
		return len(d.Text)
	}
	return int(d.lineIdx[line-1]) + 1
}

// LineEnd returns the byte offset of the line terminator (or end of text).
func (d *Document) LineEnd(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(d.lineIdx) {
		return len(d.Text)
	}
	return int(d.lineIdx[line])
}

// Line returns the content of the zero-based line without its terminator.
func (d *Document) Line(line int) string {
	if line < 0 || line >= d.LineCount() {
		return ""
	}
	return d.Text[d.LineStart(line):d.LineEnd(line)]
}

// PositionAt converts a byte offset to a position. Offsets past the end clamp.
func (d *Document) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	off := safeUint32(offset)
	line := sort.Search(len(d.lineIdx), func(i int) bool { return d.lineIdx[i] >= off })
	start := d.LineStart(line)
	return Position{Line: line, Character: utf16Len(d.Text[start:offset])}
}

// OffsetAt converts a position to a byte offset, clamping to the line and text bounds.
func (d *Document) OffsetAt(pos Position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	if pos.Line >= d.LineCount() {
		return len(d.Text)
	}
	start := d.LineStart(pos.Line)
	end := d.LineEnd(pos.Line)
	return start + byteOffsetForUTF16(d.Text[start:end], pos.Character)
}

// RangeOf converts a byte interval to a range.
func (d *Document) RangeOf(from, to int) Range {
	return Range{Start: d.PositionAt(from), End: d.PositionAt(to)}
}

// ByteOffsetForUTF16 converts an index counted in UTF-16 code units over the whole
// text (a JavaScript string index) to a byte offset.
func (d *Document) ByteOffsetForUTF16(index int) int {
	if index <= 0 {
		return 0
	}
	return byteOffsetForUTF16(d.Text, index)
}

func byteOffsetForUTF16(text string, units int) int {
	count := 0
	i := 0
	for i < len(text) && count < units {
		r, size := utf8.DecodeRuneInString(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if count+need > units {
			break
		}
		count += need
		i += size
	}
	return i
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Encode returns text as bytes for writing back to the document's file,
// restoring the BOM and CRLF line endings recorded in Flags.
func (d *Document) Encode(text string) []byte {
	if d.Flags&FlagNormalizedCRLF != 0 {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	if d.Flags&FlagHadBOM != 0 {
		return append([]byte{0xEF, 0xBB, 0xBF}, text...)
	}
	return []byte(text)
}

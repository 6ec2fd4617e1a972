package source

import (
	"path/filepath"
	"slices"

	"fortio.org/safecast"
)

const maxUint32 = ^uint32(0)

// normalizeCRLF заменяет все \r\n на \n, не трогая одиночные \r.
// Returns the new slice and whether at least one replacement happened.
func normalizeCRLF(content []byte) ([]byte, bool) {
	if !slices.Contains(content, '\r') {
		return content, false
	}

	out := make([]byte, 0, len(content))
	changed := false

	i := 0
	for i < len(content) {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < 3 {
		return content, false
	}

	if content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}

	return content, false
}

// buildLineIndex returns the byte offsets of every '\n' in text.
func buildLineIndex(text string) []uint32 {
	out := make([]uint32, 0, len(text)/32+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, safeUint32(i))
		}
	}
	return out
}

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

func normalizePath(p string) string {
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}

// RelativePath returns path relative to baseDir, or the normalized path itself
// when it lies outside baseDir.
func RelativePath(path, baseDir string) string {
	if baseDir == "" {
		return normalizePath(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return normalizePath(path)
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return normalizePath(path)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return normalizePath(absPath)
	}
	return normalizePath(rel)
}

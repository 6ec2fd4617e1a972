package diagfmt

import (
	"path/filepath"
	"strings"

	"lintfix/internal/source"
)

// autoPathLimit is the longest absolute path PathModeAuto prints in full.
const autoPathLimit = 40

func formatPath(path string, mode PathMode, baseDir string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.ToSlash(abs)
		}
		return filepath.ToSlash(path)
	case PathModeRelative:
		return source.RelativePath(path, baseDir)
	case PathModeBasename:
		return filepath.Base(path)
	default:
		if !filepath.IsAbs(path) {
			return filepath.ToSlash(filepath.Clean(path))
		}
		if baseDir != "" {
			rel := source.RelativePath(path, baseDir)
			if !strings.HasPrefix(rel, "../") && !filepath.IsAbs(filepath.FromSlash(rel)) {
				return rel
			}
		}
		if len(path) > autoPathLimit {
			return filepath.Base(path)
		}
		return filepath.ToSlash(path)
	}
}

package diagfmt

import (
	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// FileReport couples a document with the diagnostics reported for it.
// Bag is expected to be sorted.
type FileReport struct {
	Doc *source.Document
	Bag *diag.Bag
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color       bool
	Context     int // строки контекста до и после
	PathMode    PathMode
	BaseDir     string
	ShowFixes   bool
	ShowPreview bool
}

// JSONOpts configures JSON and YAML output of diagnostics.
type JSONOpts struct {
	PathMode        PathMode
	BaseDir         string
	Max             int // обрезка вывода, не Bag
	IncludeFixes    bool
	IncludePreviews bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
	// Rules maps rule ids to their descriptions.
	Rules map[string]string
}

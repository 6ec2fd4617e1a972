package lint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// TextlintSource labels diagnostics produced by textlint.
const TextlintSource = "textlint"

// DefaultTextlintCommand is used when no command is configured.
var DefaultTextlintCommand = []string{"npx", "textlint"}

// RunFunc executes name with args, feeding stdin, and returns stdout and the exit code.
type RunFunc func(ctx context.Context, dir, name string, args []string, stdin string) (stdout []byte, exitCode int, err error)

// Textlint runs an external textlint process in JSON mode.
type Textlint struct {
	Command []string
	Dir     string
	// Run is overridable for tests; nil runs the command with os/exec.
	Run RunFunc
}

type textlintResult struct {
	FilePath string            `json:"filePath"`
	Messages []textlintMessage `json:"messages"`
}

type textlintPoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type textlintMessage struct {
	RuleID   string `json:"ruleId"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Index    int    `json:"index"`
	Severity int    `json:"severity"`
	Loc      *struct {
		Start textlintPoint `json:"start"`
		End   textlintPoint `json:"end"`
	} `json:"loc,omitempty"`
	Fix *struct {
		Range [2]int `json:"range"`
		Text  string `json:"text"`
	} `json:"fix,omitempty"`
}

func (t *Textlint) Name() string { return TextlintSource }

// Fingerprint covers the command and the textlint setup visible from Dir,
// so editing .textlintrc or installing a rule invalidates cached results.
func (t *Textlint) Fingerprint() string {
	return TextlintSource + ":" + strings.Join(t.Command, " ") + ":" + textlintSetupStamp(t.Dir)
}

// textlintConfigFiles are hashed by content.
var textlintConfigFiles = []string{
	".textlintrc",
	".textlintrc.json",
	".textlintrc.yml",
	".textlintrc.yaml",
	".textlintrc.js",
	".textlintrc.cjs",
	"package.json",
}

// textlintInstallFiles change when rules or plugins are installed; only size and mtime count.
var textlintInstallFiles = []string{
	"node_modules",
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
}

// textlintSetupStamp hashes the nearest directory, walking up from dir,
// that holds any textlint config or install file.
func textlintSetupStamp(dir string) string {
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	h := sha256.New()
	for {
		found := false
		for _, name := range textlintConfigFiles {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			found = true
			fmt.Fprintf(h, "%s\x00%d\x00", name, len(data))
			h.Write(data)
		}
		for _, name := range textlintInstallFiles {
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			found = true
			fmt.Fprintf(h, "%s\x00%d\x00%d\x00", name, info.Size(), info.ModTime().UnixNano())
		}
		if found {
			fmt.Fprintf(h, "%s\x00", dir)
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

func (t *Textlint) Lint(ctx context.Context, doc *source.Document) ([]diag.Diagnostic, error) {
	command := t.Command
	if len(command) == 0 {
		command = DefaultTextlintCommand
	}
	args := append([]string(nil), command[1:]...)
	args = append(args, "--format", "json", "--stdin", "--stdin-filename", doc.Path)

	run := t.Run
	if run == nil {
		run = execRun
	}
	stdout, code, err := run(ctx, t.Dir, command[0], args, doc.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLinterFailed, command[0], err)
	}
	// textlint exits with 1 when it found problems
	if code != 0 && code != 1 {
		return nil, fmt.Errorf("%w: %s exited with status %d", ErrLinterFailed, command[0], code)
	}
	return ParseTextlintJSON(doc, stdout)
}

// ParseTextlintJSON converts textlint's JSON report for doc into diagnostics.
// textlint counts fix offsets in UTF-16 code units; they are converted to bytes.
func ParseTextlintJSON(doc *source.Document, data []byte) ([]diag.Diagnostic, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var results []textlintResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%w: decode textlint output: %w", ErrLinterFailed, err)
	}
	var out []diag.Diagnostic
	for _, res := range results {
		for _, msg := range res.Messages {
			d := diag.Diagnostic{
				Range:    textlintRange(msg),
				Severity: textlintSeverity(msg.Severity),
				Code:     msg.RuleID,
				Source:   TextlintSource,
				Message:  strings.TrimSpace(msg.Message),
			}
			if msg.Fix != nil {
				d.Fix = &diag.Fix{
					Range: diag.OffsetRange{
						From: doc.ByteOffsetForUTF16(msg.Fix.Range[0]),
						To:   doc.ByteOffsetForUTF16(msg.Fix.Range[1]),
					},
					Text: msg.Fix.Text,
				}
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func textlintRange(msg textlintMessage) source.Range {
	if msg.Loc != nil {
		return source.Range{
			Start: textlintPosition(msg.Loc.Start.Line, msg.Loc.Start.Column),
			End:   textlintPosition(msg.Loc.End.Line, msg.Loc.End.Column),
		}
	}
	pos := textlintPosition(msg.Line, msg.Column)
	return source.Range{Start: pos, End: pos}
}

// textlint lines and columns are 1-based.
func textlintPosition(line, column int) source.Position {
	return source.Position{Line: max(0, line-1), Character: max(0, column-1)}
}

func textlintSeverity(sev int) diag.Severity {
	switch sev {
	case 2:
		return diag.SevError
	case 3:
		return diag.SevInfo
	default:
		return diag.SevWarning
	}
}

func execRun(ctx context.Context, dir, name string, args []string, stdin string) ([]byte, int, error) {
	// #nosec G204 -- the command comes from the user's configuration
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() != 1 && stderr.Len() > 0 {
			return stdout.Bytes(), exitErr.ExitCode(), fmt.Errorf("%s", strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return nil, -1, err
	}
	return stdout.Bytes(), 0, nil
}

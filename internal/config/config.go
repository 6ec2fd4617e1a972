package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up from the working directory upwards.
const FileName = ".lintfix.toml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Run modes for the language server.
const (
	RunOnType = "onType"
	RunOnSave = "onSave"
)

type Config struct {
	Lint     LintConfig     `toml:"lint"`
	Textlint TextlintConfig `toml:"textlint"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`

	// Path of the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

type LintConfig struct {
	Builtin        bool     `toml:"builtin"`
	Disable        []string `toml:"disable"`
	Extensions     []string `toml:"extensions"`
	MaxDiagnostics int      `toml:"max-diagnostics"`
}

type TextlintConfig struct {
	Enabled bool     `toml:"enabled"`
	Command []string `toml:"command"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	DebounceMS int    `toml:"debounce-ms"`
	Run        string `toml:"run"`
	FixOnSave  bool   `toml:"fix-on-save"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Lint: LintConfig{
			Builtin:        true,
			Extensions:     []string{".md", ".markdown", ".txt"},
			MaxDiagnostics: 100,
		},
		Textlint: TextlintConfig{
			Command: []string{"npx", "textlint"},
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			DebounceMS: 300,
			Run:        RunOnType,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Debounce returns the server debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Server.DebounceMS) * time.Millisecond
}

// Find walks from startDir up to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path, or discovers a file from startDir when path is empty.
// A missing discovered file yields the defaults.
func Load(path, startDir string) (Config, error) {
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return Config{}, err
		}
		if !ok {
			return Default(), nil
		}
		path = found
	}
	return LoadFile(path)
}

// LoadFile decodes path over the defaults, so keys left out keep their default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: %s: unknown keys: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Run != RunOnType && c.Server.Run != RunOnSave {
		return fmt.Errorf("%w: [server].run must be %q or %q, got %q", ErrInvalid, RunOnType, RunOnSave, c.Server.Run)
	}
	if c.Server.DebounceMS < 0 {
		return fmt.Errorf("%w: [server].debounce-ms must not be negative", ErrInvalid)
	}
	if c.Lint.MaxDiagnostics < 0 {
		return fmt.Errorf("%w: [lint].max-diagnostics must not be negative", ErrInvalid)
	}
	if c.Textlint.Enabled && (len(c.Textlint.Command) == 0 || strings.TrimSpace(c.Textlint.Command[0]) == "") {
		return fmt.Errorf("%w: [textlint].command must not be empty", ErrInvalid)
	}
	for _, ext := range c.Lint.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: [lint].extensions entry %q must start with a dot", ErrInvalid, ext)
		}
	}
	return nil
}

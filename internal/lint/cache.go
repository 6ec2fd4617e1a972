package lint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

// Current schema version - increment when cachePayload format changes
const diskCacheSchemaVersion uint16 = 1

// Digest identifies one cached lint result.
type Digest [32]byte

// DiskCache stores lint results on disk, keyed by Digest.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type cachedFix struct {
	From int
	To   int
	Text string
}

type cachedDiagnostic struct {
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
	Severity  uint8
	Code      string
	Source    string
	Message   string
	Fix       *cachedFix
}

type cachePayload struct {
	Schema      uint16
	Linter      string
	Diagnostics []cachedDiagnostic
}

// OpenDiskCache opens the cache in dir, or under $XDG_CACHE_HOME/<app> when dir is empty.
func OpenDiskCache(app, dir string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "lint", hexKey[:2], hexKey+".mp")
}

// Put serializes diagnostics and writes them atomically.
func (c *DiskCache) Put(key Digest, linter string, diags []diag.Diagnostic) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload := cachePayload{
		Schema:      diskCacheSchemaVersion,
		Linter:      linter,
		Diagnostics: make([]cachedDiagnostic, 0, len(diags)),
	}
	for _, d := range diags {
		payload.Diagnostics = append(payload.Diagnostics, toCached(d))
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	if err := os.Rename(f.Name(), p); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get returns the cached diagnostics for key. Entries written by another schema
// or another linter are treated as misses.
func (c *DiskCache) Get(key Digest, linter string) ([]diag.Diagnostic, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != diskCacheSchemaVersion || payload.Linter != linter {
		return nil, false, nil
	}
	out := make([]diag.Diagnostic, 0, len(payload.Diagnostics))
	for _, d := range payload.Diagnostics {
		out = append(out, fromCached(d))
	}
	return out, true, nil
}

// DropAll removes every cached entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "lint"))
}

func toCached(d diag.Diagnostic) cachedDiagnostic {
	out := cachedDiagnostic{
		StartLine: d.Range.Start.Line,
		StartChar: d.Range.Start.Character,
		EndLine:   d.Range.End.Line,
		EndChar:   d.Range.End.Character,
		Severity:  uint8(d.Severity),
		Code:      d.Code,
		Source:    d.Source,
		Message:   d.Message,
	}
	if d.Fix != nil {
		out.Fix = &cachedFix{From: d.Fix.Range.From, To: d.Fix.Range.To, Text: d.Fix.Text}
	}
	return out
}

func fromCached(c cachedDiagnostic) diag.Diagnostic {
	out := diag.Diagnostic{
		Range: source.Range{
			Start: source.Position{Line: c.StartLine, Character: c.StartChar},
			End:   source.Position{Line: c.EndLine, Character: c.EndChar},
		},
		Severity: diag.Severity(c.Severity),
		Code:     c.Code,
		Source:   c.Source,
		Message:  c.Message,
	}
	if c.Fix != nil {
		out.Fix = &diag.Fix{Range: diag.OffsetRange{From: c.Fix.From, To: c.Fix.To}, Text: c.Fix.Text}
	}
	return out
}

// Cached serves lint results from a DiskCache and fills it on misses.
// Cache failures never fail a lint; they only cost a re-run.
type Cached struct {
	Next  Linter
	Cache *DiskCache
}

func (c *Cached) Name() string { return c.Next.Name() }

func (c *Cached) Lint(ctx context.Context, doc *source.Document) ([]diag.Diagnostic, error) {
	key := CacheKey(Fingerprint(c.Next), doc)
	if diags, ok, err := c.Cache.Get(key, c.Next.Name()); err == nil && ok {
		return diags, nil
	}
	diags, err := c.Next.Lint(ctx, doc)
	if err != nil {
		// partial results are passed through but never stored
		if IsPartial(err) {
			return diags, err
		}
		return nil, err
	}
	_ = c.Cache.Put(key, c.Next.Name(), diags)
	return diags, nil
}

// Fingerprint identifies a linter's configuration for caching. Linters that
// implement Fingerprint() string provide their own; others fall back to Name.
func Fingerprint(l Linter) string {
	if f, ok := l.(interface{ Fingerprint() string }); ok {
		return f.Fingerprint()
	}
	return l.Name()
}

// CacheKey hashes the linter fingerprint, document path and text.
func CacheKey(linter string, doc *source.Document) Digest {
	h := sha256.New()
	h.Write([]byte(linter))
	h.Write([]byte{0})
	h.Write([]byte(doc.Path))
	h.Write([]byte{0})
	h.Write([]byte(doc.Text))
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"lintfix/internal/autofix"
	"lintfix/internal/diag"
	"lintfix/internal/lint"
	"lintfix/internal/observ"
	"lintfix/internal/source"
)

// DefaultPasses bounds the fix loop when Request.Passes is zero.
const DefaultPasses = 10

// Mode selects what Run does with each file.
type Mode uint8

const (
	// ModeCheck only lints.
	ModeCheck Mode = iota
	// ModeFix lints and applies fixes until nothing more applies.
	ModeFix
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModeFix:
		return "fix"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Request describes a batch run.
type Request struct {
	Files  []string
	Linter lint.Linter
	Mode   Mode
	// Jobs limits parallelism; <= 0 means GOMAXPROCS.
	Jobs int
	// Passes bounds the fix loop per file; <= 0 means DefaultPasses.
	Passes int
	// Filter selects which fixes are applied; nil applies all of them.
	Filter         func(autofix.RegisteredFix) bool
	DryRun         bool
	MaxDiagnostics int
	Progress       ProgressSink
	Logger         *slog.Logger
	Timer          *observ.Timer
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path string
	// Doc is the final document; its text includes applied fixes.
	Doc     *source.Document
	Bag     *diag.Bag
	Applied []autofix.RegisteredFix
	Skipped []autofix.SkippedFix
	Passes  int
	Changed bool
	Err     error
}

// Result aggregates per-file results in input order.
type Result struct {
	Files []FileResult
}

// HasErrors reports whether any file failed or has error diagnostics.
func (r Result) HasErrors() bool {
	for _, f := range r.Files {
		if f.Err != nil || (f.Bag != nil && f.Bag.HasErrors()) {
			return true
		}
	}
	return false
}

// Counts returns the number of remaining diagnostics, applied fixes and changed files.
func (r Result) Counts() (diagnostics, applied, changed int) {
	for _, f := range r.Files {
		if f.Bag != nil {
			diagnostics += f.Bag.Len()
		}
		applied += len(f.Applied)
		if f.Changed {
			changed++
		}
	}
	return diagnostics, applied, changed
}

// Failed returns the results whose processing failed.
func (r Result) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Run lints req.Files in parallel and, in ModeFix, applies fixes to them.
// Per-file failures are reported in FileResult.Err; the returned error is
// only set when the context is cancelled or the request is malformed.
func Run(ctx context.Context, req Request) (Result, error) {
	if req.Linter == nil {
		return Result{}, errors.New("batch: no linter configured")
	}
	if len(req.Files) == 0 {
		return Result{}, ErrNoFiles
	}
	if req.Progress == nil {
		req.Progress = NopSink{}
	}
	if req.Logger == nil {
		req.Logger = observ.NewDiscardLogger()
	}
	if req.Passes <= 0 {
		req.Passes = DefaultPasses
	}
	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	for _, path := range req.Files {
		req.Progress.OnEvent(Event{File: path, Stage: StageRead, Status: StatusQueued})
	}

	done := req.Timer.Track("lint")
	results := make([]FileResult, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Files)))
	for i, path := range req.Files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// каждый worker пишет только в свой слот, мьютекс не нужен
			results[i] = processFile(gctx, req, path)
			return nil
		})
	}
	err := g.Wait()
	done(fmt.Sprintf("%d files", len(req.Files)))
	if err != nil {
		return Result{Files: results}, err
	}
	return Result{Files: results}, nil
}

func processFile(ctx context.Context, req Request, path string) FileResult {
	res := FileResult{Path: path}
	fail := func(stage Stage, start time.Time, err error) FileResult {
		res.Err = err
		req.Progress.OnEvent(Event{File: path, Stage: stage, Status: StatusError, Err: err, Elapsed: time.Since(start)})
		req.Logger.Warn("file failed", "file", path, "stage", string(stage), "err", err)
		return res
	}

	start := time.Now()
	req.Progress.OnEvent(Event{File: path, Stage: StageRead, Status: StatusWorking})
	doc, err := source.ReadFile(path)
	if err != nil {
		return fail(StageRead, start, fmt.Errorf("read %s: %w", path, err))
	}
	original := doc
	req.Progress.OnEvent(Event{File: path, Stage: StageRead, Status: StatusDone, Elapsed: time.Since(start)})

	idx := autofix.NewIndex()
	var diags []diag.Diagnostic
	for {
		start = time.Now()
		req.Progress.OnEvent(Event{File: path, Stage: StageLint, Status: StatusWorking})
		diags, err = req.Linter.Lint(ctx, doc)
		if err != nil && !lint.IsPartial(err) {
			return fail(StageLint, start, fmt.Errorf("lint %s: %w", path, err))
		}
		if err != nil {
			req.Logger.Warn("linter failed", "file", path, "err", err)
		}
		req.Progress.OnEvent(Event{File: path, Stage: StageLint, Status: StatusDone, Elapsed: time.Since(start)})

		if req.Mode != ModeFix || res.Passes >= req.Passes {
			break
		}

		start = time.Now()
		req.Progress.OnEvent(Event{File: path, Stage: StageFix, Status: StatusWorking})
		idx.Clear()
		for _, d := range diags {
			idx.Register(d, doc.Version, d.Code, d.Fix)
		}
		fixes := idx.SeparatedValues(req.Filter)
		applied := autofix.Apply(doc.Text, fixes)
		res.Skipped = append(res.Skipped, applied.Skipped...)
		req.Progress.OnEvent(Event{File: path, Stage: StageFix, Status: StatusDone, Elapsed: time.Since(start)})
		if !applied.Changed() {
			break
		}
		res.Passes++
		res.Applied = append(res.Applied, applied.Applied...)
		next := source.NewDocument(doc.Path, doc.Version+1, applied.Text)
		next.Flags = doc.Flags
		doc = next
		req.Logger.Debug("fix pass", "file", path, "pass", res.Passes, "applied", len(applied.Applied))
	}

	res.Doc = doc
	res.Changed = doc.Text != original.Text
	res.Bag = diag.NewBag(req.MaxDiagnostics)
	for _, d := range diags {
		res.Bag.Add(d)
	}
	res.Bag.Dedup()
	res.Bag.Sort()

	if res.Changed && !req.DryRun {
		start = time.Now()
		req.Progress.OnEvent(Event{File: path, Stage: StageWrite, Status: StatusWorking})
		if err := writeFile(path, doc.Encode(doc.Text)); err != nil {
			return fail(StageWrite, start, fmt.Errorf("write %s: %w", path, err))
		}
		req.Progress.OnEvent(Event{File: path, Stage: StageWrite, Status: StatusDone, Elapsed: time.Since(start)})
	}
	req.Progress.OnEvent(Event{File: path, Stage: StageFinish, Status: StatusDone})
	return res
}

// writeFile replaces path atomically, keeping its permission bits.
func writeFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp := path + ".lintfix.tmp"
	if err := os.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lintfix/internal/autofix"
	"lintfix/internal/batch"
	"lintfix/internal/diagfmt"
	"lintfix/internal/lint"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] <path>...",
	Short: "Apply available fixes to files or directories",
	Long:  `Lint the given files and apply every non-overlapping fix, repeating until nothing more applies or the pass limit is reached`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().Bool("dry-run", false, "compute fixes without writing files")
	fixCmd.Flags().StringArray("rule", nil, "only apply fixes of this rule (repeatable)")
	fixCmd.Flags().Int("passes", batch.DefaultPasses, "maximum fix passes per file")
	fixCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	fixCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func runFix(cmd *cobra.Command, args []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	rules, err := cmd.Flags().GetStringArray("rule")
	if err != nil {
		return fmt.Errorf("failed to get rule flag: %w", err)
	}
	passes, err := cmd.Flags().GetInt("passes")
	if err != nil {
		return fmt.Errorf("failed to get passes flag: %w", err)
	}
	if passes < 1 {
		return fmt.Errorf("--passes must be at least 1")
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	ui, err := parseAutoSwitch("ui", uiFlag)
	if err != nil {
		return err
	}
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	// правила textlint заранее не известны, проверяем только встроенные
	filter, err := ruleFilter(rules, !env.cfg.Textlint.Enabled)
	if err != nil {
		return err
	}
	linter, err := buildLinter(env.cfg, ".", env.logger)
	if err != nil {
		return err
	}

	done := env.timer.Track("collect")
	files, err := batch.CollectFiles(args, env.cfg.Lint.Extensions)
	done(fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return err
	}

	req := batch.Request{
		Files:          files,
		Linter:         linter,
		Mode:           batch.ModeFix,
		Jobs:           jobs,
		Passes:         passes,
		Filter:         filter,
		DryRun:         dryRun,
		MaxDiagnostics: env.cfg.Lint.MaxDiagnostics,
		Logger:         env.logger,
		Timer:          env.timer,
	}
	var result batch.Result
	if !env.quiet && ui.enabled(interactiveStdout()) {
		result, err = runFixWithUI(cmd.Context(), "fixing", files, req)
	} else {
		result, err = batch.Run(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	reportFailures(cmd.ErrOrStderr(), result)
	if !env.quiet {
		printFixSummary(out, result, dryRun)
	}
	reports := fileReports(result)
	diagfmt.Pretty(out, reports, diagfmt.PrettyOpts{Color: env.colored, PathMode: diagfmt.PathModeAuto})
	if !env.quiet {
		diagfmt.PrettySummary(out, reports, env.colored)
	}
	env.printTimings(cmd.ErrOrStderr())

	if result.HasErrors() {
		return errProblemsFound
	}
	return nil
}

// ruleFilter combines --rule values into one predicate; no rules means all fixes.
// With strict set, ids must name builtin rules.
func ruleFilter(rules []string, strict bool) (func(autofix.RegisteredFix) bool, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	preds := make([]func(autofix.RegisteredFix) bool, 0, len(rules))
	for _, id := range rules {
		if strict && lint.LookupRule(id) == nil {
			return nil, fmt.Errorf("unknown rule %q (see `lintfix rules`)", id)
		}
		preds = append(preds, autofix.ByRule(id))
	}
	return func(f autofix.RegisteredFix) bool {
		for _, p := range preds {
			if p(f) {
				return true
			}
		}
		return false
	}, nil
}

func printFixSummary(out io.Writer, result batch.Result, dryRun bool) {
	verb := "fixed"
	if dryRun {
		verb = "would fix"
	}
	for _, f := range result.Files {
		if !f.Changed {
			continue
		}
		fmt.Fprintf(out, "%s %s (%d edits, %d passes)\n", verb, f.Path, len(f.Applied), f.Passes)
	}
	_, applied, changed := result.Counts()
	if applied == 0 {
		fmt.Fprintln(out, "No fixes applied.")
		return
	}
	fmt.Fprintf(out, "Applied %d fix(es) in %d file(s).\n", applied, changed)
}

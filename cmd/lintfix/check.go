package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lintfix/internal/batch"
	"lintfix/internal/diagfmt"
	"lintfix/internal/lint"
	"lintfix/internal/version"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <path>...",
	Short: "Lint files and report problems",
	Long:  `Lint the given files, or every matching file under the given directories, and report problems without changing anything`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|yaml|sarif)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	checkCmd.Flags().Int("context", 0, "lines of context around each problem")
	checkCmd.Flags().Bool("suggest", false, "include fix suggestions in output")
	checkCmd.Flags().Bool("preview", false, "show how each fix changes the touched lines")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().Bool("warnings-as-errors", false, "exit non-zero on warnings too")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "pretty", "json", "yaml", "sarif":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	contextLines, err := cmd.Flags().GetInt("context")
	if err != nil {
		return fmt.Errorf("failed to get context flag: %w", err)
	}
	suggest, err := cmd.Flags().GetBool("suggest")
	if err != nil {
		return fmt.Errorf("failed to get suggest flag: %w", err)
	}
	preview, err := cmd.Flags().GetBool("preview")
	if err != nil {
		return fmt.Errorf("failed to get preview flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
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

	result, err := batch.Run(cmd.Context(), batch.Request{
		Files:          files,
		Linter:         linter,
		Mode:           batch.ModeCheck,
		Jobs:           jobs,
		MaxDiagnostics: env.cfg.Lint.MaxDiagnostics,
		Logger:         env.logger,
		Timer:          env.timer,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	reportFailures(cmd.ErrOrStderr(), result)

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	reports := fileReports(result)
	done = env.timer.Track("report")
	switch format {
	case "pretty":
		diagfmt.Pretty(out, reports, diagfmt.PrettyOpts{
			Color:       env.colored,
			Context:     contextLines,
			PathMode:    pathMode,
			ShowFixes:   suggest,
			ShowPreview: preview,
		})
		if !env.quiet {
			diagfmt.PrettySummary(out, reports, env.colored)
		}
	case "json":
		err = diagfmt.JSON(out, reports, diagfmt.JSONOpts{
			PathMode:        pathMode,
			IncludeFixes:    suggest,
			IncludePreviews: preview,
		})
	case "yaml":
		err = diagfmt.YAML(out, reports, diagfmt.JSONOpts{
			PathMode:        pathMode,
			IncludeFixes:    suggest,
			IncludePreviews: preview,
		})
	case "sarif":
		err = diagfmt.Sarif(out, reports, diagfmt.SarifRunMeta{
			ToolName:       "lintfix",
			ToolVersion:    version.Version,
			InvocationArgs: os.Args[1:],
			Rules:          ruleDescriptions(),
		})
	}
	done(format)
	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	env.printTimings(cmd.ErrOrStderr())

	if result.HasErrors() || (warningsAsErrors && hasWarnings(result)) {
		return errProblemsFound
	}
	return nil
}

func hasWarnings(result batch.Result) bool {
	for _, f := range result.Files {
		if f.Bag != nil && f.Bag.HasWarnings() {
			return true
		}
	}
	return false
}

func fileReports(result batch.Result) []diagfmt.FileReport {
	reports := make([]diagfmt.FileReport, 0, len(result.Files))
	for _, f := range result.Files {
		if f.Err != nil {
			continue
		}
		reports = append(reports, diagfmt.FileReport{Doc: f.Doc, Bag: f.Bag})
	}
	return reports
}

func reportFailures(w io.Writer, result batch.Result) {
	for _, f := range result.Failed() {
		fmt.Fprintf(w, "error: %v\n", f.Err)
	}
}

func ruleDescriptions() map[string]string {
	rules := lint.Rules()
	out := make(map[string]string, len(rules))
	for _, r := range rules {
		out[r.ID] = r.Description
	}
	return out
}

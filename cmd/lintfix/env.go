package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"lintfix/internal/config"
	"lintfix/internal/lint"
	"lintfix/internal/observ"
)

// cliEnv is the state shared by every subcommand: configuration merged with
// persistent flags, the logger and the timer.
type cliEnv struct {
	cfg     config.Config
	logger  *slog.Logger
	timer   *observ.Timer
	colored bool
	quiet   bool
	timings bool
}

func loadEnv(cmd *cobra.Command) (*cliEnv, error) {
	flags := cmd.Root().PersistentFlags()

	cfg, err := loadConfig(cmd, ".")
	if err != nil {
		return nil, err
	}

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	color, err := parseAutoSwitch("color", colorFlag)
	if err != nil {
		return nil, err
	}
	colored := color.enabled(interactiveStdout())

	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	level := observ.LevelFromString(logLevel)
	if quiet {
		level = observ.LevelQuiet
	}

	env := &cliEnv{
		cfg:     cfg,
		logger:  observ.NewLogger(cmd.ErrOrStderr(), level),
		colored: colored,
		quiet:   quiet,
		timings: timings,
	}
	if timings {
		env.timer = observ.NewTimer()
	}
	if cfg.Path != "" {
		env.logger.Debug("config loaded", "path", cfg.Path)
	}
	return env, nil
}

// loadConfig finds the config from dir, unless --config names one, and
// applies --max-diagnostics over it.
func loadConfig(cmd *cobra.Command, dir string) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(configPath, dir)
	if err != nil {
		return config.Config{}, err
	}

	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if maxDiagnostics < 0 {
		return config.Config{}, fmt.Errorf("--max-diagnostics must not be negative")
	}
	if maxDiagnostics > 0 {
		cfg.Lint.MaxDiagnostics = maxDiagnostics
	}
	return cfg, nil
}

// buildLinter assembles the configured linters, wrapped in the disk cache
// when it is enabled and can be opened. textlint runs in dir.
func buildLinter(cfg config.Config, dir string, logger *slog.Logger) (lint.Linter, error) {
	var linters lint.Multi
	if cfg.Lint.Builtin {
		builtin, err := lint.NewBuiltin(cfg.Lint.Disable...)
		if err != nil {
			return nil, err
		}
		linters = append(linters, builtin)
	}
	if cfg.Textlint.Enabled {
		linters = append(linters, &lint.Textlint{Command: cfg.Textlint.Command, Dir: dir})
	}
	if len(linters) == 0 {
		return nil, errors.New("no linters enabled: set [lint].builtin or [textlint].enabled")
	}

	var linter lint.Linter = linters
	if len(linters) == 1 {
		linter = linters[0]
	}
	if !cfg.Cache.Enabled {
		return linter, nil
	}
	cache, err := lint.OpenDiskCache("lintfix", cfg.Cache.Dir)
	if err != nil {
		logger.Warn("disk cache disabled", "err", err)
		return linter, nil
	}
	logger.Debug("disk cache", "dir", cache.Dir())
	return &lint.Cached{Next: linter, Cache: cache}, nil
}

func (e *cliEnv) printTimings(w io.Writer) {
	if e.timer == nil {
		return
	}
	fmt.Fprint(w, e.timer.Summary())
}

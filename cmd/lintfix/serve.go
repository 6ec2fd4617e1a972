package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lintfix/internal/lsp"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"lsp"},
	Short:   "Run the lintfix language server over stdio",
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	linter, err := buildLinter(env.cfg, ".", env.logger)
	if err != nil {
		return err
	}
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Linter:         linter,
		Debounce:       env.cfg.Debounce(),
		MaxDiagnostics: env.cfg.Lint.MaxDiagnostics,
		Run:            env.cfg.Server.Run,
		FixOnSave:      env.cfg.Server.FixOnSave,
		Logger:         env.logger,
		Workspace:      workspaceLoader(cmd, env),
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// workspaceLoader reloads the config from the client's workspace root and
// runs textlint there, so both see the project rather than the server's cwd.
func workspaceLoader(cmd *cobra.Command, env *cliEnv) func(root string) (lsp.Workspace, error) {
	return func(root string) (lsp.Workspace, error) {
		cfg, err := loadConfig(cmd, root)
		if err != nil {
			return lsp.Workspace{}, err
		}
		linter, err := buildLinter(cfg, root, env.logger)
		if err != nil {
			return lsp.Workspace{}, err
		}
		if cfg.Path != "" {
			env.logger.Debug("workspace config loaded", "path", cfg.Path)
		}
		return lsp.Workspace{
			Linter:         linter,
			MaxDiagnostics: cfg.Lint.MaxDiagnostics,
			Run:            cfg.Server.Run,
			FixOnSave:      cfg.Server.FixOnSave,
		}, nil
	}
}

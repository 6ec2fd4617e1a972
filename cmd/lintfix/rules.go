package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lintfix/internal/lint"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List builtin rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		disabled := make(map[string]bool, len(env.cfg.Lint.Disable))
		for _, id := range env.cfg.Lint.Disable {
			disabled[id] = true
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RULE\tSEVERITY\tFIX\tSTATE\tDESCRIPTION")
		for _, r := range lint.Rules() {
			fixable := "-"
			if r.Fixable {
				fixable = "yes"
			}
			state := "on"
			if disabled[r.ID] || !env.cfg.Lint.Builtin {
				state = "off"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Severity, fixable, state, r.Description)
		}
		return w.Flush()
	},
}

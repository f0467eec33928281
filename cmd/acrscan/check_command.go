package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"acrscan/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, ffmpeg and the ACRCloud host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, offline)
			failed := preflight.Failed(results)

			if jsonOutput {
				if err := writeJSON(cmd, checkView(results)); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				if ctx.configPath != "" {
					fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}
			if len(failed) > 0 {
				return errors.New(pluralize(len(failed), "check failed", "checks failed"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the ACRCloud reachability check")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func checkView(results []preflight.Result) []checkResult {
	out := make([]checkResult, 0, len(results))
	for _, r := range results {
		out = append(out, checkResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"boldrank/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify paths, the database and the image API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, _, err := ctx.stage(cmd, "check")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(runCtx, cfg, preflight.Options{Offline: offline})
			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := colorize("ok", ansiGreen, color)
				if !r.Passed {
					status = colorize("FAIL", ansiRed, color)
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(out, renderTable([]tableColumn{{title: "Check"}, {title: "Status"}, {title: "Detail"}}, rows, nil))
			if preflight.Failed(results) {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that need the network")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"boldrank/internal/curation"
	"boldrank/internal/logging"
)

func newCurateCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "curate <ranked.tsv>",
		Short: "Keep the best-ranked record per BIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := ctx.stage(cmd, "curate")
			if err != nil {
				return err
			}

			src, closeInput, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()
			dst, closeOutput, err := openOutput(cmd, output)
			if err != nil {
				return err
			}

			summary, err := curation.BestPerBIN(src, dst)
			if cerr := closeOutput(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			logBadRows(logger, summary.BadRows)
			logger.Info("curation complete",
				logging.Int("read", summary.Read),
				logging.Int("unranked", summary.Unranked),
				logging.Int("bins", summary.BINs),
				logging.Int("without_bin", summary.WithoutBIN),
				logging.Int("kept", summary.Kept),
			)
			fmt.Fprintf(summaryWriter(cmd, output), "Kept %d of %d records (%d BINs, %d without BIN)\n",
				summary.Kept, summary.Read, summary.BINs, summary.WithoutBIN)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Curated TSV (default stdout)")
	return cmd
}

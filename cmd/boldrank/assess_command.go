package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"boldrank/internal/criteria"
	"boldrank/internal/logging"
	"boldrank/internal/record"
)

const resultBatchSize = 20000

func newAssessCommand(ctx *commandContext) *cobra.Command {
	var (
		input     string
		output    string
		selectors []string
		workers   int
		persist   bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Evaluate the local criteria for every record",
		Long: "Evaluate the local criteria for every record and write one row per record and criterion.\n" +
			"HAS_IMAGE needs the network and is left to the images command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, logger, err := ctx.stage(cmd, "assess")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if len(selectors) == 0 {
				selectors = cfg.Criteria.Enabled
			}
			engine, err := criteria.NewEngine(selectors...)
			if err != nil {
				return err
			}
			if delegated := engine.Delegated(); len(delegated) > 0 {
				logger.Info("criteria left to other commands", logging.Any("criteria", delegated))
			}
			if len(engine.Names()) == 0 {
				return errors.New("no local criteria selected")
			}
			if workers <= 0 {
				workers = cfg.Criteria.Workers
			}

			in, err := openRecords(runCtx, cmd, ctx, input)
			if err != nil {
				return err
			}
			defer in.close()
			if err := engine.Validate(in.header); err != nil {
				return err
			}

			sink, finish, err := resultSink(cmd, ctx, output, persist)
			if err != nil {
				return err
			}

			sampler := logging.NewProgressSampler(cfg.Ranking.ChunkSize)
			var written int
			count := 0
			assessed, err := engine.AssessAll(runCtx, in.source, workers, func(results []criteria.Result) error {
				count++
				written += len(results)
				if sampler.ShouldLog(count, "assess") {
					logger.Info("records assessed", logging.Int("records", count))
				}
				return sink(runCtx, results)
			})
			if ferr := finish(runCtx); err == nil {
				err = ferr
			}
			if err != nil {
				return err
			}
			in.logBadRows(logger)

			names := make([]string, 0, len(engine.Names()))
			for _, name := range engine.Names() {
				names = append(names, string(name))
			}
			logger.Info("assessment complete",
				logging.Int("records", assessed),
				logging.Int("results", written),
				logging.String("criteria", strings.Join(names, ",")),
			)
			fmt.Fprintf(summaryWriter(cmd, outputTarget(output, persist)), "Assessed %d records against %d criteria\n", assessed, len(names))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Records TSV to assess instead of the store (- for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Long-format results TSV (default stdout)")
	cmd.Flags().StringSliceVar(&selectors, "criteria", nil, "Criteria to evaluate (default from config, all when empty)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent assessment workers (default from config)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save results to the store instead of writing TSV")
	return cmd
}

func outputTarget(output string, persist bool) string {
	if persist {
		return "store"
	}
	return output
}

type resultWriteFunc func(ctx context.Context, results []criteria.Result) error

// resultSink returns a function accepting criterion results and a finish
// function that flushes them. Results go to the store when persist is set
// and to a long-format TSV otherwise.
func resultSink(cmd *cobra.Command, c *commandContext, output string, persist bool) (resultWriteFunc, func(context.Context) error, error) {
	if persist {
		st, err := c.openStore()
		if err != nil {
			return nil, nil, err
		}
		var pending []criteria.Result
		write := func(ctx context.Context, results []criteria.Result) error {
			pending = append(pending, results...)
			if len(pending) < resultBatchSize {
				return nil
			}
			err := st.SaveResults(ctx, c.runID, pending)
			pending = pending[:0]
			return err
		}
		finish := func(ctx context.Context) error {
			defer st.Close()
			if len(pending) == 0 {
				return nil
			}
			return st.SaveResults(ctx, c.runID, pending)
		}
		return write, finish, nil
	}

	dst, closeOutput, err := openOutput(cmd, output)
	if err != nil {
		return nil, nil, err
	}
	writer, err := record.NewWriter(dst, criteria.ResultHeader)
	if err != nil {
		_ = closeOutput()
		return nil, nil, err
	}
	write := func(_ context.Context, results []criteria.Result) error {
		for _, res := range results {
			if err := writer.Write(
				strconv.FormatInt(res.RecordID, 10),
				string(res.Criterion),
				res.Verdict.String(),
				res.Note,
			); err != nil {
				return err
			}
		}
		return nil
	}
	finish := func(context.Context) error {
		if err := writer.Flush(); err != nil {
			_ = closeOutput()
			return fmt.Errorf("flush results: %w", err)
		}
		return closeOutput()
	}
	return write, finish, nil
}

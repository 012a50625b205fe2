package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"boldrank/internal/config"
	"boldrank/internal/criteria"
	"boldrank/internal/logging"
	"boldrank/internal/ranking"
	"boldrank/internal/record"
	"boldrank/internal/store"
)

func newRankCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		output     string
		longFiles  []string
		wideFiles  []string
		precedence string
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Merge criterion results and assign a tier to every record",
		Long: "Merge criterion results and assign each record a tier from 1 (best) to 6, or 0 when unranked.\n" +
			"Results come from --results and --wide files in the order given, or from the store when none are given.\n" +
			"Records come from --input, or from the store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, logger, err := ctx.stage(cmd, "rank")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if precedence == "" {
				precedence = cfg.Ranking.Precedence
			}
			policy, err := ranking.ParsePrecedence(precedence)
			if err != nil {
				return err
			}

			idx := ranking.NewIndex(policy)
			if err := loadIndex(runCtx, cmd, ctx, idx, longFiles, wideFiles, logger); err != nil {
				return err
			}
			if idx.Replaced() > 0 {
				logger.Info("conflicting results resolved",
					logging.Int("replaced", idx.Replaced()),
					logging.String("precedence", precedence),
				)
			}

			var summary ranking.Summary
			if input != "" {
				summary, err = rankFile(runCtx, cmd, idx, input, output, cfg, logger)
			} else {
				summary, err = rankStore(runCtx, cmd, ctx, idx, output, persist, logger)
			}
			if err != nil {
				return err
			}
			logBadRows(logger, summary.BadRows)
			if summary.Unmatched > 0 {
				logger.Info("records without criterion results", logging.Int("records", summary.Unmatched))
			}
			logger.Info("ranking complete",
				logging.Int("records", summary.Distribution.Total()),
				logging.Int("ranked", summary.Distribution.Total()-summary.Distribution[ranking.Unranked]),
			)

			target := output
			if output == "" && persist && input == "" {
				target = "store"
			}
			fmt.Fprintln(summaryWriter(cmd, target), renderDistribution(summary.Distribution))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Records TSV to rank instead of the store (- for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Ranked records TSV (default stdout)")
	cmd.Flags().StringArrayVar(&longFiles, "results", nil, "Long-format results TSV (repeatable)")
	cmd.Flags().StringArrayVar(&wideFiles, "wide", nil, "Wide results TSV with one column per criterion (repeatable)")
	cmd.Flags().StringVar(&precedence, "precedence", "", "Which duplicate result wins: latest or earliest (default from config)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save tiers to the store (store records only)")
	return cmd
}

func loadIndex(ctx context.Context, cmd *cobra.Command, c *commandContext, idx *ranking.Index, longFiles, wideFiles []string, logger *slog.Logger) error {
	if len(longFiles) == 0 && len(wideFiles) == 0 {
		st, err := c.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		loaded := 0
		if err := st.EachResult(ctx, func(res criteria.Result) error {
			idx.Add(res)
			loaded++
			return nil
		}); err != nil {
			return err
		}
		logger.Info("results loaded from store", logging.Int("results", loaded), logging.Int("records", idx.Len()))
		return nil
	}

	load := func(path string, fn func(io.Reader) (ranking.LoadStats, error)) error {
		src, closeInput, err := openInput(cmd, path)
		if err != nil {
			return err
		}
		defer closeInput()
		stats, err := fn(src)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		logBadRows(logger, stats.Skipped)
		logger.Info("results loaded", logging.String("path", path), logging.Int("results", stats.Results))
		return nil
	}
	for _, path := range longFiles {
		if err := load(path, idx.LoadLong); err != nil {
			return err
		}
	}
	for _, path := range wideFiles {
		if err := load(path, idx.LoadWide); err != nil {
			return err
		}
	}
	return nil
}

func rankFile(ctx context.Context, cmd *cobra.Command, idx *ranking.Index, input, output string, cfg *config.Config, logger *slog.Logger) (ranking.Summary, error) {
	src, closeInput, err := openInput(cmd, input)
	if err != nil {
		return ranking.Summary{}, err
	}
	defer closeInput()
	dst, closeOutput, err := openOutput(cmd, output)
	if err != nil {
		return ranking.Summary{}, err
	}

	sampler := logging.NewProgressSampler(cfg.Ranking.ChunkSize)
	summary, err := ranking.Apply(ctx, src, idx, dst, ranking.ApplyOptions{
		ChunkSize: cfg.Ranking.ChunkSize,
		OnChunk: func(rows int) {
			if sampler.ShouldLog(rows, "rank") {
				logger.Info("records ranked", logging.Int("records", rows))
			}
		},
	})
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	return summary, err
}

// rankStore ranks stored records. Tiers are saved when persist is set, and
// the records are written as TSV unless only persisting.
func rankStore(ctx context.Context, cmd *cobra.Command, c *commandContext, idx *ranking.Index, output string, persist bool, logger *slog.Logger) (ranking.Summary, error) {
	st, err := c.openStore()
	if err != nil {
		return ranking.Summary{}, err
	}
	defer st.Close()

	columns, err := st.Columns(ctx)
	if err != nil {
		return ranking.Summary{}, err
	}
	if len(columns) == 0 {
		return ranking.Summary{}, fmt.Errorf("store %s holds no records; run 'boldrank load' or pass --input", st.Path())
	}

	var writer *record.Writer
	closeOutput := func() error { return nil }
	if output != "" || !persist {
		var dst io.Writer
		dst, closeOutput, err = openOutput(cmd, output)
		if err != nil {
			return ranking.Summary{}, err
		}
		header := append(slices.Clone(columns), record.ColumnRanking)
		writer, err = record.NewWriter(dst, header)
		if err != nil {
			_ = closeOutput()
			return ranking.Summary{}, err
		}
	}

	var pending []store.Tier
	flush := func() error {
		if !persist || len(pending) == 0 {
			return nil
		}
		err := st.SaveTiers(ctx, c.runID, pending)
		pending = pending[:0]
		return err
	}

	cells := make([]string, len(columns)+1)
	summary, err := ranking.RankAll(ctx, st.Records(ctx, store.PageSize(defaultPageSize)), idx, func(rec record.Record, tier ranking.Tier) error {
		if persist {
			pending = append(pending, store.Tier{RecordID: rec.ID, Tier: int(tier)})
			if len(pending) == resultBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if writer == nil {
			return nil
		}
		for i, column := range columns {
			if column == record.ColumnRecordID {
				cells[i] = strconv.FormatInt(rec.ID, 10)
				continue
			}
			cells[i] = rec.String(column)
		}
		cells[len(columns)] = tier.String()
		return writer.Write(cells...)
	})
	if err == nil {
		err = flush()
	}
	if writer != nil {
		if ferr := writer.Flush(); err == nil {
			err = ferr
		}
	}
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err == nil && persist {
		logger.Info("tiers saved", logging.Int("records", summary.Distribution.Total()))
	}
	return summary, err
}

func renderDistribution(d ranking.Distribution) string {
	total := d.Total()
	rows := make([][]string, 0, len(d))
	for tier := ranking.Best; tier <= ranking.Worst; tier++ {
		rows = append(rows, distributionRow(tier.String(), d[tier], total))
	}
	rows = append(rows, distributionRow("unranked", d[ranking.Unranked], total))
	columns := []tableColumn{{title: "Tier"}, {title: "Records", numeric: true}, {title: "Share", numeric: true}}
	return renderTable(columns, rows, []string{"total", strconv.Itoa(total), ""})
}

func distributionRow(label string, count, total int) []string {
	share := "0.0%"
	if total > 0 {
		share = strconv.FormatFloat(100*float64(count)/float64(total), 'f', 1, 64) + "%"
	}
	return []string{label, strconv.Itoa(count), share}
}

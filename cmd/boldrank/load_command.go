package main

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"boldrank/internal/logging"
	"boldrank/internal/record"
	"boldrank/internal/store"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "load <records.tsv>",
		Short: "Load a specimen dump into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, logger, err := ctx.stage(cmd, "load")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			src, closeInput, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()

			reader, err := record.NewReader(src, record.AssignIDs())
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			st, err := store.Create(cfg.Paths.Database, overwrite)
			if err != nil {
				if errors.Is(err, store.ErrExists) {
					return fmt.Errorf("%w (use --overwrite to replace it)", err)
				}
				return err
			}
			defer st.Close()

			header := reader.Header()
			if !slices.Contains(header, record.ColumnRecordID) {
				header = slices.Insert(header, 0, record.ColumnRecordID)
			}
			if err := st.SetColumns(runCtx, header); err != nil {
				return err
			}

			if batchSize <= 0 {
				batchSize = defaultPageSize
			}
			sampler := logging.NewProgressSampler(cfg.Ranking.ChunkSize)
			batch := make([]record.Record, 0, batchSize)
			loaded := 0
			flush := func() error {
				if len(batch) == 0 {
					return nil
				}
				if err := st.InsertRecords(runCtx, batch); err != nil {
					return err
				}
				loaded += len(batch)
				batch = batch[:0]
				if sampler.ShouldLog(loaded, "load") {
					logger.Info("records loaded", logging.Int("records", loaded))
				}
				return nil
			}

			for {
				rec, err := reader.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				batch = append(batch, rec)
				if len(batch) == batchSize {
					if err := flush(); err != nil {
						return err
					}
					if err := runCtx.Err(); err != nil {
						return err
					}
				}
			}
			if err := flush(); err != nil {
				return err
			}
			logBadRows(logger, reader.BadRows())

			logger.Info("load complete",
				logging.Int("records", loaded),
				logging.Int("skipped", len(reader.BadRows())),
				logging.String("database", st.Path()),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d records into %s\n", loaded, st.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing database")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaultPageSize, "Records inserted per transaction")
	return cmd
}

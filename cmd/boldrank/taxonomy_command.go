package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"boldrank/internal/logging"
	"boldrank/internal/store"
	"boldrank/internal/taxonomy"
)

func newTaxonomyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Link stored records to a normalized taxon tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, logger, err := ctx.stage(cmd, "taxonomy")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			unlock, err := st.LockWriter()
			if err != nil {
				if errors.Is(err, store.ErrLocked) {
					return fmt.Errorf("%w: another taxonomy run is in progress", err)
				}
				return err
			}
			defer unlock()

			resolver := taxonomy.NewResolver(st)
			cursor := st.Records(runCtx, store.OnlyUnlinked(), store.PageSize(defaultPageSize))
			sampler := logging.NewProgressSampler(cfg.Ranking.ChunkSize)

			var (
				links      []store.TaxonLink
				linked     int
				unresolved int
				failed     int
			)
			flush := func() error {
				if len(links) == 0 {
					return nil
				}
				if err := st.SetTaxonIDs(runCtx, links); err != nil {
					return err
				}
				linked += len(links)
				links = links[:0]
				if sampler.ShouldLog(linked, "taxonomy") {
					logger.Info("records linked",
						logging.Int("records", linked),
						logging.Int("cached_taxa", resolver.CacheSize()),
					)
				}
				return nil
			}

			for {
				rec, err := cursor.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				id, ok, err := resolver.Resolve(runCtx, rec)
				if err != nil {
					if ctxErr := runCtx.Err(); ctxErr != nil {
						return ctxErr
					}
					failed++
					logging.WarnWithImpact(logger, "taxon resolution failed",
						"record keeps no taxon link; rerun taxonomy to retry",
						logging.Int64("record_id", rec.ID),
						logging.Error(err),
					)
					continue
				}
				if !ok {
					unresolved++
					continue
				}
				links = append(links, store.TaxonLink{RecordID: rec.ID, TaxonID: id})
				if len(links) == defaultPageSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := flush(); err != nil {
				return err
			}

			taxa, err := st.TaxonCount(runCtx)
			if err != nil {
				return err
			}
			if unresolved > 0 {
				logging.WarnWithImpact(logger, "records without taxonomy",
					"these records keep no taxon link",
					logging.Int("records", unresolved),
				)
			}
			logger.Info("taxonomy complete",
				logging.Int("linked", linked),
				logging.Int("unresolved", unresolved),
				logging.Int("failed", failed),
				logging.Int("taxa", taxa),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %d records (%d without taxonomy); %d taxa stored\n", linked, unresolved, taxa)
			if failed > 0 {
				return fmt.Errorf("%d records could not be linked", failed)
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"boldrank/internal/criteria"
	"boldrank/internal/images"
	"boldrank/internal/logging"
	"boldrank/internal/preflight"
	"boldrank/internal/record"
)

var imageURLHeader = []string{record.ColumnRecordID, "image_url"}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	var (
		input         string
		output        string
		urlsOutput    string
		persist       bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Decide HAS_IMAGE for every record with batched remote lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, logger, err := ctx.stage(cmd, "images")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if !skipPreflight {
				if check := preflight.CheckImageAPI(runCtx, cfg.Images); !check.Passed {
					return fmt.Errorf("image API unavailable: %s (use --skip-preflight to run anyway)", check.Detail)
				}
			}

			client, err := images.NewClient(images.ClientConfig{
				LookupURL:  cfg.Images.LookupURL,
				UserAgent:  cfg.Images.UserAgent,
				HTTPClient: &http.Client{Timeout: cfg.Images.RequestTimeout()},
			})
			if err != nil {
				return err
			}
			checker := images.NewChecker(client, images.Config{
				BatchSize:      cfg.Images.BatchSize,
				MaxInFlight:    cfg.Images.MaxInFlight,
				Retry:          images.RetryPolicy{MaxRetries: cfg.Images.MaxRetries, Delay: cfg.Images.RetryDelay()},
				RequestTimeout: cfg.Images.RequestTimeout(),
				ObjectBaseURL:  cfg.Images.ObjectBaseURL,
			}, logger)

			in, err := openRecords(runCtx, cmd, ctx, input)
			if err != nil {
				return err
			}
			defer in.close()
			if in.reader != nil {
				if err := in.reader.Require(record.ColumnProcessID); err != nil {
					return err
				}
			}

			sink, finish, err := resultSink(cmd, ctx, output, persist)
			if err != nil {
				return err
			}
			urls, finishURLs, err := imageURLSink(cmd, urlsOutput)
			if err != nil {
				_ = finish(runCtx)
				return err
			}

			summary, err := checker.Check(runCtx, in.source, func(outcomes []images.Outcome) error {
				results := make([]criteria.Result, len(outcomes))
				for i, o := range outcomes {
					results[i] = o.Result()
				}
				if err := urls(outcomes); err != nil {
					return err
				}
				// Results are still recorded for a cancelled wave.
				return sink(context.WithoutCancel(runCtx), results)
			})
			if ferr := finishURLs(); err == nil {
				err = ferr
			}
			if ferr := finish(context.WithoutCancel(runCtx)); err == nil {
				err = ferr
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logging.WarnWithImpact(logger, "image check interrupted",
						"records after the last completed wave are not assessed",
						logging.Int("records", summary.Records),
					)
				}
				return err
			}
			in.logBadRows(logger)

			if summary.Unknown > 0 {
				logging.WarnWithImpact(logger, "image availability unknown for some records",
					"those records cannot reach tiers that need HAS_IMAGE",
					logging.Int("records", summary.Unknown),
					logging.Int("failed_batches", summary.FailedBatches),
				)
			}
			logger.Info("image check complete",
				logging.Int("records", summary.Records),
				logging.Int("present", summary.Present),
				logging.Int("absent", summary.Absent),
				logging.Int("unknown", summary.Unknown),
				logging.Int("batches", summary.Batches),
				logging.Int("waves", summary.Waves),
			)
			fmt.Fprintf(summaryWriter(cmd, outputTarget(output, persist)),
				"Checked %d records: %d with images, %d without, %d unknown\n",
				summary.Records, summary.Present, summary.Absent, summary.Unknown)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Records TSV to check instead of the store (- for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Long-format results TSV (default stdout)")
	cmd.Flags().StringVar(&urlsOutput, "urls", "", "Also write record_id and image_url for records with an image")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save results to the store instead of writing TSV")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not probe the image API before starting")
	return cmd
}

func imageURLSink(cmd *cobra.Command, path string) (func([]images.Outcome) error, func() error, error) {
	if path == "" {
		return func([]images.Outcome) error { return nil }, func() error { return nil }, nil
	}
	dst, closeOutput, err := openOutput(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	writer, err := record.NewWriter(dst, imageURLHeader)
	if err != nil {
		_ = closeOutput()
		return nil, nil, err
	}
	write := func(outcomes []images.Outcome) error {
		for _, o := range outcomes {
			if o.Verdict != criteria.Pass {
				continue
			}
			if err := writer.Write(strconv.FormatInt(o.RecordID, 10), o.URL); err != nil {
				return err
			}
		}
		return nil
	}
	finish := func() error {
		if err := writer.Flush(); err != nil {
			_ = closeOutput()
			return fmt.Errorf("flush image urls: %w", err)
		}
		return closeOutput()
	}
	return write, finish, nil
}

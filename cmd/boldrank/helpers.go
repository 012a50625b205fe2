package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"boldrank/internal/config"
	"boldrank/internal/criteria"
	"boldrank/internal/logging"
	"boldrank/internal/record"
	"boldrank/internal/store"
)

const (
	defaultPageSize  = 5000
	maxBadRowsLogged = 20
)

// openInput opens path, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func() error, error) {
	path = strings.TrimSpace(path)
	if path == "-" {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}

// openOutput creates path, or returns stdout when path is empty or "-".
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Create(expanded)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// writesToStdout reports whether an --output value means stdout. Summaries
// then go to stderr so the TSV stream stays clean.
func writesToStdout(path string) bool {
	path = strings.TrimSpace(path)
	return path == "" || path == "-"
}

func summaryWriter(cmd *cobra.Command, output string) io.Writer {
	if writesToStdout(output) {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// recordInput is a record stream from a TSV file or the store.
type recordInput struct {
	source criteria.Source
	header []string
	reader *record.Reader
	close  func() error
}

// openRecords reads records from input when set and from the store otherwise.
// TSV records without a record id column are numbered the way load numbers
// them.
func openRecords(ctx context.Context, cmd *cobra.Command, c *commandContext, input string) (*recordInput, error) {
	if strings.TrimSpace(input) != "" {
		src, closeFn, err := openInput(cmd, input)
		if err != nil {
			return nil, err
		}
		reader, err := record.NewReader(src, record.AssignIDs())
		if err != nil {
			_ = closeFn()
			return nil, fmt.Errorf("read %s: %w", input, err)
		}
		return &recordInput{source: reader, header: reader.Header(), reader: reader, close: closeFn}, nil
	}

	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	header, err := st.Columns(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if len(header) == 0 {
		_ = st.Close()
		return nil, fmt.Errorf("store %s holds no records; run 'boldrank load' or pass --input", st.Path())
	}
	return &recordInput{
		source: st.Records(ctx, store.PageSize(defaultPageSize)),
		header: header,
		close:  st.Close,
	}, nil
}

func (in *recordInput) logBadRows(logger *slog.Logger) {
	if in.reader == nil {
		return
	}
	logBadRows(logger, in.reader.BadRows())
}

func logBadRows(logger *slog.Logger, bad []record.BadRow) {
	if len(bad) == 0 {
		return
	}
	for i, row := range bad {
		if i == maxBadRowsLogged {
			break
		}
		logger.Debug("skipped malformed row",
			logging.Int("line", row.Line),
			logging.String("reason", row.Reason),
			logging.String("sample", row.Sample),
		)
	}
	logging.WarnWithImpact(logger, "skipped malformed rows",
		"those records are missing from the output",
		logging.Int("rows", len(bad)),
		logging.Int("first_line", bad[0].Line),
		logging.String("first_reason", bad[0].Reason),
	)
}

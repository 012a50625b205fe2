package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var cellSanitizer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// Writer emits TSV rows with a fixed header.
type Writer struct {
	bw      *bufio.Writer
	columns int
}

// NewWriter writes the header row immediately.
func NewWriter(dst io.Writer, header []string) (*Writer, error) {
	if len(header) == 0 {
		return nil, errors.New("tsv writer: header is empty")
	}
	w := &Writer{bw: bufio.NewWriter(dst), columns: len(header)}
	if err := w.writeCells(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Write appends one row; the cell count must match the header.
func (w *Writer) Write(cells ...string) error {
	if len(cells) != w.columns {
		return fmt.Errorf("tsv writer: expected %d cells, got %d", w.columns, len(cells))
	}
	return w.writeCells(cells)
}

// Flush writes any buffered rows.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeCells(cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := w.bw.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := w.bw.WriteString(cellSanitizer.Replace(cell)); err != nil {
			return err
		}
	}
	return w.bw.WriteByte('\n')
}

package sinks

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/HatiCode/silverline/pkg/frame"
)

// CSVSink writes frames as CSV with a header row in frame column order.
// Missing values are written as empty cells.
type CSVSink struct {
	Dir string
}

func (c *CSVSink) Name() string { return "csv" }

// Write implements Sink.
func (c *CSVSink) Write(ctx context.Context, dataset string, f *frame.Frame) (string, error) {
	return commit(c.Dir, dataset+".csv", func(out *os.File) error {
		buf := bufio.NewWriter(out)
		w := csv.NewWriter(buf)

		if err := w.Write(f.Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		cols := f.Columns()
		record := make([]string, len(cols)+1)
		for i, ts := range f.Index() {
			if i%rowBatch == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			record[0] = ts.UTC().Format(time.RFC3339)
			for j, col := range cols {
				record[j+1] = formatCell(col, i)
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return buf.Flush()
	})
}

func formatCell(c frame.Column, i int) string {
	switch col := c.(type) {
	case *frame.Float:
		if v, ok := col.At(i); ok {
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return ""
	case *frame.Int:
		return strconv.FormatInt(col.At(i), 10)
	default:
		return ""
	}
}

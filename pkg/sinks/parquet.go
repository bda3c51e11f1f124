package sinks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/HatiCode/silverline/pkg/frame"
)

// ColumnOrderKey is the file metadata key holding the frame's column order.
// Parquet groups store fields sorted by name, so readers that care about
// the silver layout restore it from this entry.
const ColumnOrderKey = "silverline.columns"

const rowBatch = 4096

// ParquetSink writes frames as Parquet files with nullable float columns,
// required int64 columns and a millisecond timestamp index.
type ParquetSink struct {
	Dir string
}

func (p *ParquetSink) Name() string { return "parquet" }

// Write implements Sink.
func (p *ParquetSink) Write(ctx context.Context, dataset string, f *frame.Frame) (string, error) {
	schema, err := Schema(dataset, f)
	if err != nil {
		return "", err
	}

	positions := make(map[string]int)
	for i, path := range schema.Columns() {
		positions[path[0]] = i
	}

	return commit(p.Dir, dataset+".parquet", func(out *os.File) error {
		w := parquet.NewWriter(out, schema,
			parquet.KeyValueMetadata(ColumnOrderKey, strings.Join(f.Names(), ",")))

		index, cols := f.Index(), f.Columns()
		rows := make([]parquet.Row, 0, rowBatch)
		for i := range index {
			rows = append(rows, buildRow(index[i], cols, i, positions))
			if len(rows) == rowBatch {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := w.WriteRows(rows); err != nil {
					return fmt.Errorf("write rows: %w", err)
				}
				rows = rows[:0]
			}
		}
		if len(rows) > 0 {
			if _, err := w.WriteRows(rows); err != nil {
				return fmt.Errorf("write rows: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	})
}

// Schema derives the Parquet schema of f.
func Schema(dataset string, f *frame.Frame) (*parquet.Schema, error) {
	group := parquet.Group{
		frame.IndexColumn: parquet.Timestamp(parquet.Millisecond),
	}
	for _, c := range f.Columns() {
		switch c.(type) {
		case *frame.Float:
			group[c.Name()] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		case *frame.Int:
			group[c.Name()] = parquet.Int(64)
		default:
			return nil, fmt.Errorf("column %q has unsupported type %T", c.Name(), c)
		}
	}
	return parquet.NewSchema(dataset, group), nil
}

func buildRow(ts time.Time, cols []frame.Column, i int, positions map[string]int) parquet.Row {
	row := make(parquet.Row, len(positions))

	idx := positions[frame.IndexColumn]
	row[idx] = parquet.Int64Value(ts.UnixMilli()).Level(0, 0, idx)

	for _, c := range cols {
		pos := positions[c.Name()]
		switch col := c.(type) {
		case *frame.Float:
			if v, ok := col.At(i); ok {
				row[pos] = parquet.DoubleValue(v).Level(0, 1, pos)
			} else {
				row[pos] = parquet.NullValue().Level(0, 0, pos)
			}
		case *frame.Int:
			row[pos] = parquet.Int64Value(col.At(i)).Level(0, 0, pos)
		}
	}
	return row
}

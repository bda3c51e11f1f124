package sinks

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/HatiCode/silverline/pkg/frame"
)

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{start, start.Add(time.Minute), start.Add(2 * time.Minute)}
	f := frame.New(index)

	avg := frame.FloatFrom("avg_load", []float64{1.5, 2.5, 3.5})
	lag := frame.NewFloat("lag_1m", 3)
	lag.Set(1, 1.5)
	lag.Set(2, 2.5)
	hour := frame.NewInt("hour", 3)

	if err := f.Append(avg, hour, lag); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestParquetSink_Write(t *testing.T) {
	dir := t.TempDir()
	f := testFrame(t)

	path, err := (&ParquetSink{Dir: dir}).Write(context.Background(), "power_load_1m", f)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if path != filepath.Join(dir, "power_load_1m.parquet") {
		t.Errorf("unexpected path %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, _ := file.Stat()

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	if pf.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", pf.NumRows())
	}

	order, ok := pf.Lookup(ColumnOrderKey)
	if !ok || order != "bin_start,avg_load,hour,lag_1m" {
		t.Errorf("column order metadata = %q, %v", order, ok)
	}

	positions := make(map[string]int)
	for i, p := range pf.Schema().Columns() {
		positions[p[0]] = i
	}

	reader := parquet.NewReader(file)
	defer reader.Close()
	rows := make([]parquet.Row, 3)
	n, err := reader.ReadRows(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadRows error: %v", err)
	}
	if n != 3 {
		t.Fatalf("read %d rows, want 3", n)
	}

	if v := rows[0][positions["lag_1m"]]; !v.IsNull() {
		t.Errorf("row 0 lag_1m = %v, want null", v)
	}
	if v := rows[2][positions["lag_1m"]]; v.IsNull() || v.Double() != 2.5 {
		t.Errorf("row 2 lag_1m = %v, want 2.5", v)
	}
	if v := rows[1][positions["bin_start"]]; v.Int64() != f.Index()[1].UnixMilli() {
		t.Errorf("row 1 bin_start = %v", v)
	}
	if v := rows[2][positions["avg_load"]]; v.Double() != 3.5 {
		t.Errorf("row 2 avg_load = %v", v)
	}
}

func TestCSVSink_Write(t *testing.T) {
	dir := t.TempDir()

	path, err := (&CSVSink{Dir: dir}).Write(context.Background(), "power_load_1m", testFrame(t))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	if got := strings.Join(records[0], ","); got != "bin_start,avg_load,hour,lag_1m" {
		t.Errorf("header = %s", got)
	}
	if records[1][3] != "" {
		t.Errorf("missing lag should be an empty cell, got %q", records[1][3])
	}
	if records[2][0] != "2024-01-01T00:01:00Z" || records[2][3] != "1.5" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestSink_CanceledContextLeavesNoFile(t *testing.T) {
	dir := t.TempDir()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, rowBatch+1)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * time.Minute)
	}
	f := frame.New(index)
	if err := f.Append(frame.NewFloat("avg_load", len(index))); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range []Sink{&ParquetSink{Dir: dir}, &CSVSink{Dir: dir}} {
		if _, err := s.Write(ctx, "partial", f); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: error = %v, want context.Canceled", s.Name(), err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty output dir, found %d entries", len(entries))
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"parquet", "csv"} {
		s, err := New(format, t.TempDir())
		if err != nil {
			t.Fatalf("New(%s) error: %v", format, err)
		}
		if s.Name() != format {
			t.Errorf("Name() = %s, want %s", s.Name(), format)
		}
	}
	if _, err := New("orc", t.TempDir()); err == nil {
		t.Error("expected error for unknown format")
	}
}

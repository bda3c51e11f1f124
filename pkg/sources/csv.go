package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/workday"
)

// timestampLayouts are tried in order when parsing CSV timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	time.DateOnly,
}

// CSVSource reads the bronze tables from two CSV files with headers
// "timestamp,load" and "date,class".
type CSVSource struct {
	SamplesPath string
	DaysPath    string
}

func (c *CSVSource) Name() string { return "csv" }

// Load implements Source.
func (c *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	if c.SamplesPath == "" || c.DaysPath == "" {
		return nil, errors.New("csv source: samples and days paths are required")
	}

	sf, err := os.Open(c.SamplesPath)
	if err != nil {
		return nil, fmt.Errorf("open samples: %w", err)
	}
	defer sf.Close()

	samples, err := ReadSamplesCSV(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("read samples %s: %w", c.SamplesPath, err)
	}

	df, err := os.Open(c.DaysPath)
	if err != nil {
		return nil, fmt.Errorf("open days: %w", err)
	}
	defer df.Close()

	days, err := ReadDaysCSV(df)
	if err != nil {
		return nil, fmt.Errorf("read days %s: %w", c.DaysPath, err)
	}

	return &Dataset{Samples: samples, Days: days}, nil
}

// ReadSamplesCSV parses a "timestamp,load" table.
func ReadSamplesCSV(ctx context.Context, r io.Reader) ([]resample.Sample, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	if err := readHeader(cr, "timestamp", "load"); err != nil {
		return nil, err
	}

	var samples []resample.Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, faults.Schema("line %d: %v", line, err)
		}

		if line%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, faults.Schema("line %d: %v", line, err)
		}
		load, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, faults.Schema("line %d: load %q is not numeric", line, rec[1])
		}
		samples = append(samples, resample.Sample{Timestamp: ts, Load: load})
	}

	if len(samples) == 0 {
		return nil, faults.Schema("sample table has no rows")
	}
	return samples, nil
}

// ReadDaysCSV parses a "date,class" table.
func ReadDaysCSV(r io.Reader) ([]workday.Day, error) {
	cr := csv.NewReader(r)

	if err := readHeader(cr, "date", "class"); err != nil {
		return nil, err
	}

	var days []workday.Day
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, faults.Schema("line %d: %v", line, err)
		}

		date, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, faults.Schema("line %d: %v", line, err)
		}
		class, err := workday.ParseClass(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		days = append(days, workday.Day{Date: date, Class: class})
	}
	return days, nil
}

func readHeader(cr *csv.Reader, want ...string) error {
	header, err := cr.Read()
	if err != nil {
		return faults.Schema("read header: %v", err)
	}
	if len(header) != len(want) {
		return faults.Schema("header %v, want %v", header, want)
	}
	for i, name := range want {
		if strings.TrimSpace(header[i]) != name {
			return faults.Schema("header %v, want %v", header, want)
		}
	}
	cr.FieldsPerRecord = len(want)
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

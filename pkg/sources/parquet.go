package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/workday"
)

// SampleRecord is the Parquet row layout of the bronze load table.
type SampleRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Load      float64 `parquet:"load"`
}

// DayRecord is the Parquet row layout of the bronze day-class table.
type DayRecord struct {
	Date  int64  `parquet:"date,timestamp(millisecond)"`
	Class string `parquet:"class"`
}

// ParquetSource reads the bronze tables from two Parquet files.
type ParquetSource struct {
	SamplesPath string
	DaysPath    string
}

func (p *ParquetSource) Name() string { return "parquet" }

// Load implements Source.
func (p *ParquetSource) Load(ctx context.Context) (*Dataset, error) {
	if p.SamplesPath == "" || p.DaysPath == "" {
		return nil, errors.New("parquet source: samples and days paths are required")
	}

	sampleRows, err := parquet.ReadFile[SampleRecord](p.SamplesPath)
	if err != nil {
		return nil, fmt.Errorf("read samples %s: %w", p.SamplesPath, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dayRows, err := parquet.ReadFile[DayRecord](p.DaysPath)
	if err != nil {
		return nil, fmt.Errorf("read days %s: %w", p.DaysPath, err)
	}

	return fromRecords(sampleRows, dayRows)
}

func fromRecords(sampleRows []SampleRecord, dayRows []DayRecord) (*Dataset, error) {
	samples := make([]resample.Sample, len(sampleRows))
	for i, r := range sampleRows {
		samples[i] = resample.Sample{
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Load:      r.Load,
		}
	}

	days := make([]workday.Day, len(dayRows))
	for i, r := range dayRows {
		class, err := workday.ParseClass(r.Class)
		if err != nil {
			return nil, fmt.Errorf("day row %d: %w", i, err)
		}
		days[i] = workday.Day{Date: time.UnixMilli(r.Date).UTC(), Class: class}
	}

	if len(samples) == 0 {
		return nil, faults.Schema("sample table has no rows")
	}
	return &Dataset{Samples: samples, Days: days}, nil
}

// WriteParquet writes a dataset in the bronze Parquet layout. It is the
// inverse of ParquetSource and is used to stage bronze tables.
func WriteParquet(d *Dataset, samplesPath, daysPath string) error {
	sampleRows := make([]SampleRecord, len(d.Samples))
	for i, s := range d.Samples {
		sampleRows[i] = SampleRecord{Timestamp: s.Timestamp.UnixMilli(), Load: s.Load}
	}
	if err := parquet.WriteFile(samplesPath, sampleRows); err != nil {
		return fmt.Errorf("write samples %s: %w", samplesPath, err)
	}

	dayRows := make([]DayRecord, len(d.Days))
	for i, day := range d.Days {
		dayRows[i] = DayRecord{Date: day.Date.UnixMilli(), Class: day.Class.String()}
	}
	if err := parquet.WriteFile(daysPath, dayRows); err != nil {
		return fmt.Errorf("write days %s: %w", daysPath, err)
	}
	return nil
}

// Package sources provides silverline's bronze-layer readers. Each source
// loads the raw load series and the day-class table and normalizes them
// into a Dataset for the resampling stage.
//
// Available sources:
//   - ParquetSource — reads the two bronze tables from Parquet files
//   - CSVSource     — reads the two bronze tables from CSV files
//   - HTTPSource    — fetches both tables from a JSON API using gjson paths
//
// Sources only shape data. Ordering, cadence and coverage are checked by the
// validate package, so a source never sorts, deduplicates or fills input.
package sources

import (
	"context"
	"time"

	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/workday"
)

// Dataset is the bronze input of one run.
type Dataset struct {
	Samples []resample.Sample
	Days    []workday.Day
}

// Range returns the first and last sample timestamps.
func (d *Dataset) Range() (time.Time, time.Time) {
	if len(d.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Samples[0].Timestamp, d.Samples[len(d.Samples)-1].Timestamp
}

// Source is implemented by every bronze reader.
type Source interface {
	// Load reads the complete sample and day-class tables.
	Load(ctx context.Context) (*Dataset, error)

	// Name returns a short identifier such as "parquet" or "http".
	Name() string
}

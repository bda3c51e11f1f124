//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/HatiCode/silverline/pkg/history"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/sinks"
	"github.com/HatiCode/silverline/pkg/sources"
	"github.com/HatiCode/silverline/pkg/storage"
	"github.com/HatiCode/silverline/pkg/temporal"
	"github.com/HatiCode/silverline/pkg/validate"
	"github.com/HatiCode/silverline/pkg/workday"
)

type bronzeSample struct {
	TS int64   `json:"ts"`
	KW float64 `json:"kw"`
}

type bronzeDay struct {
	Date  int64  `json:"date"`
	Class string `json:"class"`
}

// bronzeServer serves one day of 1-second samples following a daily ramp.
func bronzeServer(t *testing.T, day time.Time) *httptest.Server {
	t.Helper()

	samples := make([]bronzeSample, 24*60*60)
	for i := range samples {
		samples[i] = bronzeSample{
			TS: day.Add(time.Duration(i) * time.Second).UnixMilli(),
			KW: 500 + float64(i/60),
		}
	}
	doc := map[string]any{
		"samples": samples,
		"days":    []bronzeDay{{Date: day.UnixMilli(), Class: "half"}},
	}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

// TestBronzeToSilver runs the HTTP source through every stage into a
// Parquet file and a Redis manifest.
func TestBronzeToSilver(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	server := bronzeServer(t, day)

	src, err := sources.New("http", map[string]string{
		"samplesUrl":      server.URL,
		"timestampPath":   "samples.#.ts",
		"loadPath":        "samples.#.kw",
		"datePath":        "days.#.date",
		"classPath":       "days.#.class",
		"timestampFormat": "unix_milli",
	})
	if err != nil {
		t.Fatalf("sources.New() error = %v", err)
	}

	ds, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := validate.New(0, true).Raw(ds.Samples, ds.Days); err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	cal, err := workday.NewCalendar(ds.Days)
	if err != nil {
		t.Fatal(err)
	}

	width := 15 * time.Minute
	v := validate.New(width, true)
	engine, err := history.NewEngine(history.Config{
		BinMinutes:     15,
		Lags:           []int{1, 15, 60},
		RollingWindows: []int{4},
		SlopeWindows:   []int{4},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := resample.Aggregate(ds.Samples, width, cal)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if f, err = temporal.Extend(f); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if f, err = engine.Apply(ctx, f); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := v.Frame(f, validate.FeatureColumns(engine.Columns())); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}

	// each 15-minute bin averages minutes m..m+14, i.e. 500 + m + 7
	avg, _ := f.Float(resample.AvgLoadColumn)
	if got, _ := avg.At(4); got != 567 {
		t.Errorf("avg_load[4] = %v, want 567", got)
	}
	// the load ramps one unit per minute
	slope, _ := f.Float(history.SlopeName(60))
	if got, ok := slope.At(10); !ok || got != 1 {
		t.Errorf("slope_60m[10] = %v, %v; want 1", got, ok)
	}

	dir := t.TempDir()
	path, err := (&sinks.ParquetSink{Dir: dir}).Write(ctx, "power_load_15m", f)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, _ := file.Stat()
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if pf.NumRows() != 96 {
		t.Errorf("parquet rows = %d, want 96", pf.NumRows())
	}
	if order, _ := pf.Lookup(sinks.ColumnOrderKey); order != strings.Join(f.Names(), ",") {
		t.Errorf("column order = %q", order)
	}

	store, err := storage.NewRedisStore(startRedis(t), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()

	m := storage.Manifest{
		Dataset:     "power_load_15m",
		BinMinutes:  15,
		GeneratedAt: time.Now().UTC(),
		Rows:        f.Len(),
		Columns:     f.Names(),
		Start:       f.Index()[0],
		End:         f.Index()[f.Len()-1],
		Output:      path,
		Format:      "parquet",
	}
	if err := store.Put(ctx, m); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := store.GetLatest(ctx, "power_load_15m")
	if err != nil || !found {
		t.Fatalf("GetLatest() found=%v err=%v", found, err)
	}
	if got.Rows != 96 || got.Output != path || !got.End.Equal(day.Add(95*width)) {
		t.Errorf("manifest = %+v", got)
	}
}

package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/silverline/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManifest(dataset string, generatedAt time.Time) storage.Manifest {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return storage.Manifest{
		Dataset:     dataset,
		BinMinutes:  15,
		GeneratedAt: generatedAt,
		Rows:        96,
		Columns:     []string{"bin_start", "avg_load", "workday"},
		Missing:     map[string]int{"lag_1440m": 96},
		Start:       start,
		End:         start.Add(95 * 15 * time.Minute),
		Output:      "/data/silver/" + dataset + ".parquet",
		Format:      "parquet",
	}
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// failingStore returns err from every call.
type failingStore struct{ err error }

func (s failingStore) Put(context.Context, storage.Manifest) error { return s.err }
func (s failingStore) GetLatest(context.Context, string) (storage.Manifest, bool, error) {
	return storage.Manifest{}, false, s.err
}
func (s failingStore) Datasets(context.Context) ([]string, error) { return nil, s.err }

func TestLatestManifest(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), testManifest("power_load_15m", time.Now())); err != nil {
		t.Fatal(err)
	}
	h := SetupRoutes(store, Options{}, discardLogger())

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/datasets/latest?dataset=power_load_15m", http.StatusOK},
		{"missing parameter", "/datasets/latest", http.StatusBadRequest},
		{"invalid name", "/datasets/latest?dataset=../etc", http.StatusBadRequest},
		{"not found", "/datasets/latest?dataset=power_load_1m", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.target)
			if w.Code != tt.want {
				t.Errorf("status code = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestLatestManifest_Body(t *testing.T) {
	store := storage.NewMemoryStore()
	want := testManifest("power_load_15m", time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	if err := store.Put(context.Background(), want); err != nil {
		t.Fatal(err)
	}

	w := serve(SetupRoutes(store, Options{}, discardLogger()), "/datasets/latest?dataset=power_load_15m")

	var got storage.Manifest
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Dataset != want.Dataset || got.Rows != 96 || got.BinMinutes != 15 || !got.End.Equal(want.End) {
		t.Errorf("manifest = %+v", got)
	}
	if got.Missing["lag_1440m"] != 96 {
		t.Errorf("missing = %v", got.Missing)
	}
}

func TestLatestManifest_Stale(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), testManifest("fresh", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), testManifest("old", time.Now().Add(-3*time.Hour))); err != nil {
		t.Fatal(err)
	}

	h := SetupRoutes(store, Options{StaleAfter: time.Hour}, discardLogger())

	if got := serve(h, "/datasets/latest?dataset=old").Header().Get("X-Silverline-Stale"); got != "true" {
		t.Errorf("old manifest stale header = %q, want true", got)
	}
	if got := serve(h, "/datasets/latest?dataset=fresh").Header().Get("X-Silverline-Stale"); got != "" {
		t.Errorf("fresh manifest stale header = %q, want empty", got)
	}
}

func TestStoreErrors(t *testing.T) {
	h := SetupRoutes(failingStore{err: errors.New("connection refused")}, Options{}, discardLogger())

	for _, target := range []string{"/datasets", "/datasets/latest?dataset=power_load_1m"} {
		w := serve(h, target)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: status code = %d, want 500", target, w.Code)
		}
		if strings.Contains(w.Body.String(), "connection refused") {
			t.Errorf("%s: store error leaked to client", target)
		}
	}
}

func TestListDatasets(t *testing.T) {
	store := storage.NewMemoryStore()
	h := SetupRoutes(store, Options{}, discardLogger())

	if body := strings.TrimSpace(serve(h, "/datasets").Body.String()); body != `{"datasets":[]}` {
		t.Errorf("empty list body = %s", body)
	}

	for _, name := range []string{"power_load_15m", "power_load_1m"} {
		if err := store.Put(context.Background(), testManifest(name, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	var resp struct {
		Datasets []string `json:"datasets"`
	}
	if err := json.NewDecoder(serve(h, "/datasets").Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Datasets) != 2 || resp.Datasets[0] != "power_load_15m" {
		t.Errorf("datasets = %v", resp.Datasets)
	}
}

func TestHealthEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := storage.NewRedisStore(mr.Addr(), "", 0, 0)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer rs.Close()

	h := SetupRoutes(rs, Options{Health: rs.Ping}, discardLogger())

	w := serve(h, "/healthz")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("healthy: status = %d, body = %q", w.Code, w.Body.String())
	}

	mr.Close()
	if w := serve(h, "/healthz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("redis down: status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), testManifest("power_load_1m", time.Now())); err != nil {
		t.Fatal(err)
	}
	h := SetupRoutes(store, Options{Registry: reg}, discardLogger())

	serve(h, "/datasets/latest?dataset=power_load_1m")
	serve(h, "/datasets/latest?dataset=power_load_5m")
	serve(h, "/datasets/latest?dataset=power_load_5m")

	expected := `
# HELP silverline_catalog_lookups_total Manifest lookups by result
# TYPE silverline_catalog_lookups_total counter
silverline_catalog_lookups_total{result="found"} 1
silverline_catalog_lookups_total{result="not_found"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "silverline_catalog_lookups_total"); err != nil {
		t.Error(err)
	}

	w := serve(h, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "silverline_catalog_lookups_total") {
		t.Error("metrics output missing lookup counter")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := SetupRoutes(storage.NewMemoryStore(), Options{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/datasets/latest?dataset=x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want 405", w.Code)
	}
}

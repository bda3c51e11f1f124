package config

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Listen != ":8090" || cfg.Storage != "redis" {
		t.Errorf("Listen = %q, Storage = %q", cfg.Listen, cfg.Storage)
	}
	if cfg.RequestTimeout != 2*time.Second || cfg.StaleAfter != 0 {
		t.Errorf("RequestTimeout = %v, StaleAfter = %v", cfg.RequestTimeout, cfg.StaleAfter)
	}

	opts := cfg.StoreOptions()
	if opts.Backend != "redis" || opts.RedisAddr != "localhost:6379" || opts.RedisTTL != 0 {
		t.Errorf("StoreOptions() = %+v", opts)
	}
}

func TestParse_EnvAndFlags(t *testing.T) {
	t.Setenv("CATALOG_LISTEN", ":9000")
	t.Setenv("STALE_AFTER", "2h")

	cfg, err := Parse(newFlagSet(), []string{"-storage=memory", "-listen=:9100"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Listen != ":9100" {
		t.Errorf("Listen = %q, want flag value", cfg.Listen)
	}
	if cfg.StaleAfter != 2*time.Hour {
		t.Errorf("StaleAfter = %v, want env value", cfg.StaleAfter)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown storage", []string{"-storage=etcd"}},
		{"negative stale", []string{"-stale-after=-1m"}},
		{"zero request timeout", []string{"-request-timeout=0s"}},
		{"tls without files", []string{"-tls-enabled"}},
		{"empty listen", []string{"-listen="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(newFlagSet(), tt.args)
			if !errors.Is(err, faults.ErrConfiguration) {
				t.Errorf("Parse() error = %v, want configuration error", err)
			}
		})
	}
}

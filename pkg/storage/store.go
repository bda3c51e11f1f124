// Package storage keeps run manifests: the catalog entry describing the
// latest silver table written for each dataset.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Manifest describes one committed silver table.
type Manifest struct {
	Dataset     string    `json:"dataset"`
	BinMinutes  int       `json:"binMinutes"`
	GeneratedAt time.Time `json:"generatedAt"`
	Rows        int       `json:"rows"`
	Columns     []string  `json:"columns"`

	// Missing counts the missing rows per float column. Columns without
	// missing values are omitted.
	Missing map[string]int `json:"missing,omitempty"`

	// Start and End are the first and last bin_start of the table.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Output is the path of the committed file and Format its sink format.
	Output string `json:"output"`
	Format string `json:"format"`
}

// Store persists the latest manifest per dataset.
type Store interface {
	Put(ctx context.Context, m Manifest) error
	GetLatest(ctx context.Context, dataset string) (Manifest, bool, error)
	Datasets(ctx context.Context) ([]string, error)
}

// validDataset restricts dataset names to characters that are safe inside
// file names and redis keys.
func validDataset(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name required")
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid dataset name %q: only alphanumeric, hyphens, and underscores allowed", name)
		}
	}
	return nil
}

// Options selects and configures a Store backend.
type Options struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// Open returns the store named by o.Backend: "memory" or "redis".
func Open(o Options) (Store, error) {
	switch o.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		rs, err := NewRedisStore(o.RedisAddr, o.RedisPassword, o.RedisDB, o.RedisTTL)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be memory or redis)", o.Backend)
	}
}

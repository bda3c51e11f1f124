// Package sinks persists silver frames.
//
// A sink writes one file per dataset into its directory. Files are staged
// under a temporary name and renamed into place only after a complete
// write, so a failed run never leaves a partial silver table behind.
package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HatiCode/silverline/pkg/frame"
)

// Sink is implemented by every silver writer.
type Sink interface {
	// Write persists f as dataset and returns the final file path.
	Write(ctx context.Context, dataset string, f *frame.Frame) (string, error)

	// Name returns the sink format, e.g. "parquet".
	Name() string
}

// New returns the sink for format writing into dir.
func New(format, dir string) (Sink, error) {
	switch format {
	case "parquet":
		return &ParquetSink{Dir: dir}, nil
	case "csv":
		return &CSVSink{Dir: dir}, nil
	default:
		return nil, fmt.Errorf("unknown sink format: %s (must be parquet or csv)", format)
	}
}

// commit stages the output of write in dir and renames it to name.
func commit(dir, name string, write func(*os.File) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("rename into %s: %w", final, err)
	}
	return final, nil
}

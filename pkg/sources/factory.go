package sources

import (
	"encoding/json"
	"fmt"
	"time"
)

// New creates a source based on kind and a generic configuration map, as
// collected from SOURCE_* environment variables or flags.
//
// Supported kinds:
//   - "parquet": ParquetSource, requires "samplesPath" and "daysPath"
//   - "csv":     CSVSource, requires "samplesPath" and "daysPath"
//   - "http":    HTTPSource, requires "samplesUrl" and the four gjson paths
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Source, error) {
	switch kind {
	case "parquet":
		samples, days, err := filePaths(kind, config)
		if err != nil {
			return nil, err
		}
		return &ParquetSource{SamplesPath: samples, DaysPath: days}, nil
	case "csv":
		samples, days, err := filePaths(kind, config)
		if err != nil {
			return nil, err
		}
		return &CSVSource{SamplesPath: samples, DaysPath: days}, nil
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be parquet, csv, or http)", kind)
	}
}

func filePaths(kind string, config map[string]string) (string, string, error) {
	samples := config["samplesPath"]
	days := config["daysPath"]
	if samples == "" || days == "" {
		return "", "", fmt.Errorf("%s source requires 'samplesPath' and 'daysPath' config", kind)
	}
	return samples, days, nil
}

// newHTTP creates an HTTP source from generic config.
func newHTTP(config map[string]string) (Source, error) {
	src := &HTTPSource{
		SamplesURL:      config["samplesUrl"],
		DaysURL:         config["daysUrl"],
		TimestampPath:   config["timestampPath"],
		LoadPath:        config["loadPath"],
		DatePath:        config["datePath"],
		ClassPath:       config["classPath"],
		TimestampFormat: config["timestampFormat"],
	}

	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &src.Headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &src.TemplateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	for key, dst := range map[string]*time.Time{"start": &src.Start, "end": &src.End} {
		raw := config[key]
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid '%s': %w", key, err)
		}
		*dst = t
	}

	if err := src.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	return src, nil
}

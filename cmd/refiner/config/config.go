// Package config provides configuration parsing for the refiner.
//
// Flags take precedence over environment variables, which take precedence
// over defaults. Source-specific settings come from SOURCE_* environment
// variables folded into a generic map (SOURCE_SAMPLES_PATH → samplesPath).
// The history feature lists can also be read from a YAML features file,
// which overrides the corresponding flags.
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	for _, width := range cfg.Widths {
//	    engine, err := history.NewEngine(cfg.History(width))
//	    ...
//	}
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/history"
	"github.com/HatiCode/silverline/pkg/tls"
)

// Config holds all refiner configuration.
type Config struct {
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// TLS holds the client certificate presented to HTTP sources.
	TLS tls.Config

	Source        string
	SourceConfig  map[string]string
	SourceTimeout time.Duration

	Sink      string
	OutputDir string

	// DatasetPrefix names outputs as <prefix>_<width>m.
	DatasetPrefix string

	// Widths are the bin widths in minutes; one dataset is produced per width.
	Widths []int

	Lags           []int
	RollingWindows []int
	SlopeWindows   []int
	Deltas         bool
	Parallelism    int

	StrictCadence bool
	FeaturesFile  string
	MetricsFile   string
	Timeout       time.Duration
}

// FeatureFile is the YAML layout of -features-file. Omitted keys keep the
// flag values.
type FeatureFile struct {
	Widths         []int `yaml:"widths"`
	Lags           []int `yaml:"lags"`
	RollingWindows []int `yaml:"rollingWindows"`
	SlopeWindows   []int `yaml:"slopeWindows"`
	Deltas         *bool `yaml:"deltas"`
	Parallelism    *int  `yaml:"parallelism"`
}

// ParseFlags parses the process command line and environment. It exits the
// process on invalid configuration.
func ParseFlags() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Parse parses args into a Config using fs, applies SOURCE_* variables and
// the features file, and validates the result.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	defaults := history.DefaultConfig()
	cfg := &Config{}

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Manifest storage backend: memory or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "Manifest TTL (0 keeps manifests until overwritten)")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Present a client certificate to HTTP sources")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS client certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS client private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for server verification")

	fs.StringVar(&cfg.Source, "source", getEnv("SOURCE", "parquet"), "Bronze source kind: parquet, csv, or http")
	fs.DurationVar(&cfg.SourceTimeout, "source-timeout", getEnvDuration("SOURCE_TIMEOUT", 30*time.Second), "HTTP source request timeout")

	fs.StringVar(&cfg.Sink, "sink", getEnv("SINK", "parquet"), "Silver output format: parquet or csv")
	fs.StringVar(&cfg.OutputDir, "output-dir", getEnv("OUTPUT_DIR", "silver"), "Silver output directory")
	fs.StringVar(&cfg.DatasetPrefix, "dataset-prefix", getEnv("DATASET_PREFIX", "power_load"), "Output dataset name prefix")

	widths := intList(getEnvInts("WIDTHS", []int{defaults.BinMinutes}))
	lags := intList(getEnvInts("LAGS", defaults.Lags))
	rolling := intList(getEnvInts("ROLLING_WINDOWS", defaults.RollingWindows))
	slopes := intList(getEnvInts("SLOPE_WINDOWS", defaults.SlopeWindows))
	fs.Var(&widths, "widths", "Comma-separated bin widths in minutes")
	fs.Var(&lags, "lags", "Comma-separated lag horizons in minutes")
	fs.Var(&rolling, "rolling-windows", "Comma-separated rolling window sizes in bins")
	fs.Var(&slopes, "slope-windows", "Comma-separated slope lookback sizes in bins")
	fs.BoolVar(&cfg.Deltas, "deltas", getEnvBool("DELTAS", defaults.Deltas), "Compute delta features (requires lag 1 and 1-minute bins)")
	fs.IntVar(&cfg.Parallelism, "parallelism", getEnvInt("PARALLELISM", 0), "Max feature columns computed concurrently (0 = unbounded)")

	fs.BoolVar(&cfg.StrictCadence, "strict-cadence", getEnvBool("STRICT_CADENCE", true), "Reject raw series with gaps in the 1-second cadence")
	fs.StringVar(&cfg.FeaturesFile, "features-file", getEnv("FEATURES_FILE", ""), "YAML file overriding widths and feature lists")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", getEnv("METRICS_FILE", ""), "Write run metrics to this node-exporter textfile")
	fs.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("TIMEOUT", 30*time.Minute), "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Widths = widths
	cfg.Lags = lags
	cfg.RollingWindows = rolling
	cfg.SlopeWindows = slopes
	cfg.SourceConfig = parseSourceConfig(os.Environ())

	if cfg.FeaturesFile != "" {
		ff, err := LoadFeatureFile(cfg.FeaturesFile)
		if err != nil {
			return nil, err
		}
		cfg.apply(ff)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFeatureFile reads a YAML features file.
func LoadFeatureFile(path string) (*FeatureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features file: %w", err)
	}

	var ff FeatureFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, faults.Configuration("parse features file %s: %v", path, err)
	}
	return &ff, nil
}

func (c *Config) apply(ff *FeatureFile) {
	if ff.Widths != nil {
		c.Widths = ff.Widths
	}
	if ff.Lags != nil {
		c.Lags = ff.Lags
	}
	if ff.RollingWindows != nil {
		c.RollingWindows = ff.RollingWindows
	}
	if ff.SlopeWindows != nil {
		c.SlopeWindows = ff.SlopeWindows
	}
	if ff.Deltas != nil {
		c.Deltas = *ff.Deltas
	}
	if ff.Parallelism != nil {
		c.Parallelism = *ff.Parallelism
	}
}

var datasetPrefixRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,200}$`)

// Validate checks the whole configuration, including the history feature
// configuration for every width.
func (c *Config) Validate() error {
	if !datasetPrefixRegex.MatchString(c.DatasetPrefix) {
		return faults.Configuration("invalid dataset prefix %q (must be alphanumeric with dash/underscore)", c.DatasetPrefix)
	}
	if len(c.Widths) == 0 {
		return faults.Configuration("at least one bin width is required")
	}

	seen := make(map[int]bool, len(c.Widths))
	for _, w := range c.Widths {
		if seen[w] {
			return faults.Configuration("duplicate bin width %d", w)
		}
		seen[w] = true
		if err := c.History(w).Validate(); err != nil {
			return fmt.Errorf("width %dm: %w", w, err)
		}
	}

	if c.Timeout <= 0 {
		return faults.Configuration("timeout must be > 0")
	}
	if err := c.TLS.Validate(); err != nil {
		return faults.Configuration("%v", err)
	}
	return nil
}

// History returns the history engine configuration for a bin width.
func (c *Config) History(widthMinutes int) history.Config {
	return history.Config{
		BinMinutes:     widthMinutes,
		Lags:           c.Lags,
		RollingWindows: c.RollingWindows,
		SlopeWindows:   c.SlopeWindows,
		Deltas:         c.Deltas,
		Parallelism:    c.Parallelism,
	}
}

// DatasetName returns the output dataset name for a bin width.
func (c *Config) DatasetName(widthMinutes int) string {
	return fmt.Sprintf("%s_%dm", c.DatasetPrefix, widthMinutes)
}

// intList is a flag.Value holding comma-separated integers.
type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	values, err := parseInts(s)
	if err != nil {
		return err
	}
	*l = values
	return nil
}

func parseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}

	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.New("expected comma-separated integers, got " + strconv.Quote(s))
		}
		values = append(values, v)
	}
	return values, nil
}

// parseSourceConfig folds SOURCE_* environment variables into a generic
// configuration map. Keys are converted to lower camel case
// (SOURCE_SAMPLES_PATH → samplesPath). SOURCE and SOURCE_TIMEOUT are
// refiner flags, not source settings.
func parseSourceConfig(environ []string) map[string]string {
	config := make(map[string]string)

	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "SOURCE_") || key == "SOURCE_TIMEOUT" {
			continue
		}
		config[toLowerCamelCase(strings.TrimPrefix(key, "SOURCE_"))] = value
	}

	return config
}

func toLowerCamelCase(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, w := range words {
		if w == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteString(strings.ToUpper(w[:1]))
			b.WriteString(w[1:])
			continue
		}
		b.WriteString(w)
	}
	return b.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInts(key string, defaultValue []int) []int {
	if value := os.Getenv(key); value != "" {
		if values, err := parseInts(value); err == nil {
			return values
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

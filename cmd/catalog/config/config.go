// Package config provides configuration parsing for the catalog server.
//
// Flags take precedence over environment variables, which take precedence
// over defaults.
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	store, err := storage.Open(cfg.StoreOptions())
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/storage"
	"github.com/HatiCode/silverline/pkg/tls"
)

// Config holds all catalog configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// StaleAfter marks manifests older than this as stale. Zero disables
	// the check.
	StaleAfter      time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// TLS configures mutual TLS on the listener.
	TLS tls.Config
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

// Parse parses args into a Config using fs and validates the result.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", getEnv("CATALOG_LISTEN", ":8090"), "HTTP listen address")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "redis"), "Manifest storage backend: memory or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	fs.DurationVar(&cfg.StaleAfter, "stale-after", getEnvDuration("STALE_AFTER", 0), "Flag manifests older than this as stale (0 disables)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 2*time.Second), "Store lookup timeout per request")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Serve HTTPS and require client certificates")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS server certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS server private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return faults.Configuration("listen address required")
	}
	if c.Storage != "memory" && c.Storage != "redis" {
		return faults.Configuration("unknown storage backend %q (must be memory or redis)", c.Storage)
	}
	if c.StaleAfter < 0 {
		return faults.Configuration("stale-after must be >= 0")
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return faults.Configuration("request and shutdown timeouts must be > 0")
	}
	if err := c.TLS.Validate(); err != nil {
		return faults.Configuration("%v", err)
	}
	return nil
}

// StoreOptions returns the manifest store options. The catalog only reads,
// so no TTL is set.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Backend:       c.Storage,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
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

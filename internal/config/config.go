// Package config provides types for loading slaeworker configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values, per the JOB_TIMEOUT/RESULT_TTL/poll
// interval defaults named in spec.md section 6.
const (
	DefaultJobTimeout   = 600 * time.Second
	DefaultResultTTL    = 300 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
	DefaultGRPCAddr     = ":8080"
	DefaultRedisAddr    = "localhost:6379"
)

// DefaultMethods is the recognized solver method identifier set named in
// spec.md section 6.
var DefaultMethods = []string{
	"numpy_exact",
	"numpy_lstsq",
	"numpy_pinv",
	"petsc",
	"scipy_gmres",
}

// Config holds the tunables of the registry, its loops, and its transport
// adapters. A zero-value Config is not usable; build one with Load or
// Default.
type Config struct {
	// JobTimeout is the worker lifetime ceiling (spec.md JOB_TIMEOUT).
	JobTimeout time.Duration `yaml:"job_timeout"`
	// ResultTTL is the retention window after a terminal transition
	// (spec.md RESULT_TTL).
	ResultTTL time.Duration `yaml:"result_ttl"`
	// PollInterval is the watcher/cleaner pass cadence (spec.md P).
	PollInterval time.Duration `yaml:"poll_interval"`
	// Methods is the recognized solver method identifier set.
	Methods []string `yaml:"methods"`
	// GRPCAddr is the address the gRPC transport adapter listens on.
	GRPCAddr string `yaml:"grpc_addr"`
	// RedisAddr is the address of the Redis instance backing the
	// queue-fronted transport adapter.
	RedisAddr string `yaml:"redis_addr"`
}

// yamlConfig mirrors Config's shape for parsing only durations as strings,
// since yaml.v3 does not natively decode time.Duration.
type yamlConfig struct {
	JobTimeout   string   `yaml:"job_timeout"`
	ResultTTL    string   `yaml:"result_ttl"`
	PollInterval string   `yaml:"poll_interval"`
	Methods      []string `yaml:"methods"`
	GRPCAddr     string   `yaml:"grpc_addr"`
	RedisAddr    string   `yaml:"redis_addr"`
}

// Default returns a Config populated with spec.md's defaults.
func Default() Config {
	return Config{
		JobTimeout:   DefaultJobTimeout,
		ResultTTL:    DefaultResultTTL,
		PollInterval: DefaultPollInterval,
		Methods:      append([]string(nil), DefaultMethods...),
		GRPCAddr:     DefaultGRPCAddr,
		RedisAddr:    DefaultRedisAddr,
	}
}

// Load builds a Config starting from Default, overlaying any values found in
// the YAML file at path (if path is non-empty and the file exists), then
// overlaying environment variable overrides. This mirrors
// original_source/mdds_server/config_loader.py's "file, with fallback"
// design, rendered with the pack's own gopkg.in/yaml.v3 dependency instead
// of PyYAML.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			var y yamlConfig
			if err := yaml.Unmarshal(b, &y); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			applyYAML(&cfg, y)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyYAML(cfg *Config, y yamlConfig) {
	if d, err := time.ParseDuration(y.JobTimeout); err == nil {
		cfg.JobTimeout = d
	}
	if d, err := time.ParseDuration(y.ResultTTL); err == nil {
		cfg.ResultTTL = d
	}
	if d, err := time.ParseDuration(y.PollInterval); err == nil {
		cfg.PollInterval = d
	}
	if len(y.Methods) > 0 {
		cfg.Methods = y.Methods
	}
	if y.GRPCAddr != "" {
		cfg.GRPCAddr = y.GRPCAddr
	}
	if y.RedisAddr != "" {
		cfg.RedisAddr = y.RedisAddr
	}
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("JOB_TIMEOUT"); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("parse JOB_TIMEOUT: %w", err)
		}
		cfg.JobTimeout = d
	}
	if v, ok := os.LookupEnv("RESULT_TTL"); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("parse RESULT_TTL: %w", err)
		}
		cfg.ResultTTL = d
	}
	if v, ok := os.LookupEnv("SLAEWORKER_POLL_INTERVAL"); ok {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("parse SLAEWORKER_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v, ok := os.LookupEnv("SLAEWORKER_GRPC_ADDR"); ok && v != "" {
		cfg.GRPCAddr = v
	}
	if v, ok := os.LookupEnv("SLAEWORKER_REDIS_ADDR"); ok && v != "" {
		cfg.RedisAddr = v
	}
	return nil
}

// parseSecondsOrDuration accepts either a bare integer (interpreted as
// seconds, matching spec.md's "JOB_TIMEOUT (default 600 s)" phrasing) or a
// Go duration string (e.g. "10m").
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Package config provides configuration loading and validation for the
// news aggregation service. It uses koanf to merge environment variables
// with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// MinScoreThreshold is the minimum relevance confidence for an item
	// to be accepted.
	MinScoreThreshold float64 `koanf:"min_score_threshold"`

	// MaxItems caps the number of accepted items kept in memory.
	MaxItems int `koanf:"max_items"`

	// RefreshIntervalSeconds is the delay between refresh cycle
	// completions.
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`

	// InitialFetchLimitPerSource bounds the first fetch of each source.
	InitialFetchLimitPerSource int `koanf:"initial_fetch_limit_per_source"`

	// RecencyPersistenceSeconds is the decay time scale for recency
	// weighting. Zero or negative disables decay.
	RecencyPersistenceSeconds int `koanf:"recency_persistence_seconds"`

	// ClassifierURL is the zero-shot inference endpoint. Empty selects
	// the local keyword classifier.
	ClassifierURL string `koanf:"classifier_url"`

	// FeedURLs are RSS/Atom feeds to poll.
	FeedURLs []string `koanf:"feed_urls"`

	// Subreddits are Reddit communities to poll.
	Subreddits []string `koanf:"subreddits"`
}

// Configuration validation errors.
var (
	ErrInvalidPort         = errors.New("NEWSFEED_PORT must be a valid integer")
	ErrInvalidThreshold    = errors.New("min_score_threshold must be in [0, 1]")
	ErrInvalidMaxItems     = errors.New("max_items must be positive")
	ErrInvalidInterval     = errors.New("refresh_interval_seconds must be positive")
	ErrInvalidInitialLimit = errors.New("initial_fetch_limit_per_source must be positive")
)

// Default values.
const (
	DefaultPort                       = 8080
	DefaultEnv                        = "development"
	DefaultMinScoreThreshold          = 0.08
	DefaultMaxItems                   = 100
	DefaultRefreshIntervalSeconds     = 30
	DefaultInitialFetchLimitPerSource = 5
	DefaultRecencyPersistenceSeconds  = 86400
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid). A config file path that cannot be loaded is an error.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("NEWSFEED_PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	threshold, err := getEnvFloatOrDefault("NEWSFEED_MIN_SCORE", k.Float64("min_score_threshold"), DefaultMinScoreThreshold)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	maxItems, err := getEnvIntOrDefault("NEWSFEED_MAX_ITEMS", k.Int("max_items"), DefaultMaxItems)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	interval, err := getEnvIntOrDefault("NEWSFEED_REFRESH_INTERVAL_SECONDS", k.Int("refresh_interval_seconds"), DefaultRefreshIntervalSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	initialLimit, err := getEnvIntOrDefault("NEWSFEED_INITIAL_FETCH_LIMIT", k.Int("initial_fetch_limit_per_source"), DefaultInitialFetchLimitPerSource)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	persistence, err := getEnvIntOrDefault("NEWSFEED_RECENCY_PERSISTENCE_SECONDS", k.Int("recency_persistence_seconds"), DefaultRecencyPersistenceSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                       port,
		Env:                        getEnvOrDefault("NEWSFEED_ENV", k.String("env"), DefaultEnv),
		MinScoreThreshold:          threshold,
		MaxItems:                   maxItems,
		RefreshIntervalSeconds:     interval,
		InitialFetchLimitPerSource: initialLimit,
		RecencyPersistenceSeconds:  persistence,
		ClassifierURL:              getEnvOrDefault("NEWSFEED_CLASSIFIER_URL", k.String("classifier_url"), ""),
		FeedURLs:                   getEnvListOrDefault("NEWSFEED_FEED_URLS", k.Strings("feed_urls")),
		Subreddits:                 getEnvListOrDefault("NEWSFEED_SUBREDDITS", k.Strings("subreddits")),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrDefault returns a comma-separated environment list if set,
// otherwise the koanf value.
func getEnvListOrDefault(envKey string, koanfVal []string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return koanfVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the
// environment variable is set but not an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if
// set, otherwise the koanf value, or default. A zero file value falls
// back to the default; use a small positive threshold instead of zero.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all configuration values are within range.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.MinScoreThreshold < 0 || c.MinScoreThreshold > 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.MaxItems <= 0 {
		errs = append(errs, ErrInvalidMaxItems)
	}
	if c.RefreshIntervalSeconds <= 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	if c.InitialFetchLimitPerSource <= 0 {
		errs = append(errs, ErrInvalidInitialLimit)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                           fmt.Sprintf("%d", c.Port),
		"env":                            c.Env,
		"min_score_threshold":            fmt.Sprintf("%g", c.MinScoreThreshold),
		"max_items":                      fmt.Sprintf("%d", c.MaxItems),
		"refresh_interval_seconds":       fmt.Sprintf("%d", c.RefreshIntervalSeconds),
		"initial_fetch_limit_per_source": fmt.Sprintf("%d", c.InitialFetchLimitPerSource),
		"recency_persistence_seconds":    fmt.Sprintf("%d", c.RecencyPersistenceSeconds),
		"classifier_url":                 c.ClassifierURL,
		"feed_urls":                      strings.Join(c.FeedURLs, ","),
		"subreddits":                     strings.Join(c.Subreddits, ","),
	}
}

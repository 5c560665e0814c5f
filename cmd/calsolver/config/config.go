// Package config provides configuration parsing and management for the
// calibration solver.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the solver including:
//   - Observation identification and the adapter that fetches it
//   - The analysis band (f_low, f_high in MHz)
//   - Fit orders for the reflection models and the calibration curves
//   - Spectrum preprocessing (ignore percentage, assumed load temperatures)
//   - Storage backend settings (memory or Redis)
//   - Timing configuration (re-solve interval)
//   - Logging configuration (level, format)
//   - TLS configuration (cert, key, CA files)
//
// Adapter-specific configuration is provided via ADAPTER_* environment
// variables, e.g. ADAPTER_ROOT for the file adapter or ADAPTER_URL for the
// HTTP adapter.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/tls"
)

// Config holds all solver configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	TLS           tls.Config

	Observation   string
	Adapter       string
	AdapterConfig map[string]string

	FLow  float64
	FHigh float64

	Model         string
	MatchOhm      float64
	ReceiverTerms int
	SwitchTerms   int
	LoadTerms     int
	CTerms        int
	WTerms        int

	IgnorePercent float64
	TLoad         float64
	TLoadNS       float64
	HotLoadCable  string

	Interval time.Duration
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided. Each solver instance manages a single observation.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8081"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis solution TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.Observation, "observation", getEnv("OBSERVATION", ""), "Observation name (required)")
	flag.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", ""), "Adapter type: file or http")

	flag.Float64Var(&cfg.FLow, "f-low", getEnvFloat("F_LOW", 50), "Lower band edge in MHz")
	flag.Float64Var(&cfg.FHigh, "f-high", getEnvFloat("F_HIGH", 100), "Upper band edge in MHz")

	flag.StringVar(&cfg.Model, "model", getEnv("MODEL", "polynomial"), "Basis for the reflection fits: polynomial or fourier")
	flag.Float64Var(&cfg.MatchOhm, "match-ohm", getEnvFloat("MATCH_OHM", 50), "Match standard resistance in ohm")
	flag.IntVar(&cfg.ReceiverTerms, "receiver-terms", getEnvInt("RECEIVER_TERMS", 11), "Receiver reflection fit terms")
	flag.IntVar(&cfg.SwitchTerms, "switch-terms", getEnvInt("SWITCH_TERMS", 7), "Internal switch parameter fit terms")
	flag.IntVar(&cfg.LoadTerms, "load-terms", getEnvInt("LOAD_TERMS", 5), "Per-load reflection fit terms")
	flag.IntVar(&cfg.CTerms, "cterms", getEnvInt("CTERMS", 6), "Scale and offset curve fit terms")
	flag.IntVar(&cfg.WTerms, "wterms", getEnvInt("WTERMS", 5), "Noise-wave curve fit terms")

	flag.Float64Var(&cfg.IgnorePercent, "ignore-percent", getEnvFloat("IGNORE_PERCENT", 7), "Leading percentage of time samples to discard")
	flag.Float64Var(&cfg.TLoad, "t-load", getEnvFloat("T_LOAD", 300), "Assumed internal load temperature in K")
	flag.Float64Var(&cfg.TLoadNS, "t-load-ns", getEnvFloat("T_LOAD_NS", 350), "Assumed load plus noise source temperature in K")
	flag.StringVar(&cfg.HotLoadCable, "hot-load-cable", getEnv("HOT_LOAD_CABLE", "semi-rigid"), "Hot load cable loss model: semi-rigid or none")

	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 1*time.Hour), "Re-solve interval")

	flag.Parse()

	cfg.AdapterConfig = parseAdapterConfig()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

var observationNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_.-]{0,251}[a-zA-Z0-9])?$`)

// Validate checks the configuration for inconsistencies. Errors name the
// offending field.
func (c *Config) Validate() error {
	if c.Observation == "" {
		return fmt.Errorf("observation is required")
	}
	if !observationNameRegex.MatchString(c.Observation) {
		return fmt.Errorf("invalid observation name %q (must be alphanumeric with dash/underscore/dot, 1-253 chars)", c.Observation)
	}

	if c.Adapter == "" {
		return fmt.Errorf("adapter is required")
	}
	if c.Adapter != "file" && c.Adapter != "http" {
		return fmt.Errorf("invalid adapter %q (must be file or http)", c.Adapter)
	}

	if c.FLow <= 0 {
		return fmt.Errorf("f-low must be > 0, got %g", c.FLow)
	}
	if c.FHigh <= c.FLow {
		return fmt.Errorf("f-high (%g) must exceed f-low (%g)", c.FHigh, c.FLow)
	}

	if _, err := modeling.ParseModelType(c.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.MatchOhm <= 0 {
		return fmt.Errorf("match-ohm must be > 0, got %g", c.MatchOhm)
	}

	for _, tc := range []struct {
		name  string
		value int
	}{
		{"receiver-terms", c.ReceiverTerms},
		{"switch-terms", c.SwitchTerms},
		{"load-terms", c.LoadTerms},
		{"cterms", c.CTerms},
		{"wterms", c.WTerms},
	} {
		if tc.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", tc.name, tc.value)
		}
	}

	if c.IgnorePercent < 0 || c.IgnorePercent >= 100 {
		return fmt.Errorf("ignore-percent must be in [0, 100), got %g", c.IgnorePercent)
	}
	if c.TLoad <= 0 {
		return fmt.Errorf("t-load must be > 0, got %g", c.TLoad)
	}
	if c.TLoadNS <= 0 {
		return fmt.Errorf("t-load-ns must be > 0, got %g", c.TLoadNS)
	}
	if c.HotLoadCable != "semi-rigid" && c.HotLoadCable != "none" {
		return fmt.Errorf("invalid hot-load-cable %q (must be semi-rigid or none)", c.HotLoadCable)
	}

	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", c.Interval)
	}

	if err := c.TLS.Validate(); err != nil {
		return err
	}

	return nil
}

// parseAdapterConfig parses ADAPTER_* environment variables into a generic
// configuration map. For example: ADAPTER_ROOT, ADAPTER_URL, ADAPTER_HEADERS.
// Environment variable names are converted to camelCase for the map keys
// (ADAPTER_TEMPLATE_VARS -> templateVars).
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 8 && env[:8] == "ADAPTER_" {
			parts := splitEnv(env)
			if len(parts) == 2 {
				key := toLowerCamelCase(parts[0][8:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
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

package config

import (
	"flag"
	"os"
	"strings"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "from-env",
			want:         "from-env",
		},
		{
			name:         "environment variable not set",
			key:          "NONEXISTENT_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "valid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "invalid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "not-a-number",
			want:         10,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_INT",
			defaultValue: 99,
			envValue:     "",
			want:         99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue float64
		envValue     string
		want         float64
	}{
		{
			name:         "valid float",
			key:          "TEST_FLOAT",
			defaultValue: 1.0,
			envValue:     "3.14",
			want:         3.14,
		},
		{
			name:         "invalid float",
			key:          "TEST_FLOAT",
			defaultValue: 2.5,
			envValue:     "not-a-float",
			want:         2.5,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_FLOAT",
			defaultValue: 9.99,
			envValue:     "",
			want:         9.99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvFloat(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvFloat() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "valid duration",
			key:          "TEST_DURATION",
			defaultValue: 1 * time.Minute,
			envValue:     "5m",
			want:         5 * time.Minute,
		},
		{
			name:         "invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 30 * time.Second,
			envValue:     "not-a-duration",
			want:         30 * time.Second,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	os.Setenv("ADAPTER_ROOT", "/data/observations")
	defer os.Unsetenv("ADAPTER_ROOT")

	os.Args = []string{
		"cmd",
		"-observation=receiver01_2026_050_to_100",
		"-adapter=file",
	}

	cfg := ParseFlags()

	if cfg.Listen != ":8081" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8081")
	}
	if cfg.FLow != 50 || cfg.FHigh != 100 {
		t.Errorf("band = [%g, %g], want [50, 100]", cfg.FLow, cfg.FHigh)
	}
	if cfg.Model != "polynomial" {
		t.Errorf("Model = %q, want %q", cfg.Model, "polynomial")
	}
	if cfg.MatchOhm != 50 {
		t.Errorf("MatchOhm = %g, want 50", cfg.MatchOhm)
	}
	if cfg.ReceiverTerms != 11 {
		t.Errorf("ReceiverTerms = %d, want 11", cfg.ReceiverTerms)
	}
	if cfg.CTerms != 6 || cfg.WTerms != 5 {
		t.Errorf("cterms/wterms = %d/%d, want 6/5", cfg.CTerms, cfg.WTerms)
	}
	if cfg.IgnorePercent != 7 {
		t.Errorf("IgnorePercent = %g, want 7", cfg.IgnorePercent)
	}
	if cfg.TLoad != 300 || cfg.TLoadNS != 350 {
		t.Errorf("TLoad/TLoadNS = %g/%g, want 300/350", cfg.TLoad, cfg.TLoadNS)
	}
	if cfg.HotLoadCable != "semi-rigid" {
		t.Errorf("HotLoadCable = %q, want %q", cfg.HotLoadCable, "semi-rigid")
	}
	if cfg.Interval != 1*time.Hour {
		t.Errorf("Interval = %v, want 1h", cfg.Interval)
	}
	if cfg.RedisTTL != 24*time.Hour {
		t.Errorf("RedisTTL = %v, want 24h", cfg.RedisTTL)
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "memory")
	}
	if cfg.AdapterConfig["root"] != "/data/observations" {
		t.Errorf("AdapterConfig[root] = %q", cfg.AdapterConfig["root"])
	}
}

func TestConfig_CustomValues(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	os.Args = []string{
		"cmd",
		"-observation=obs-2026-08",
		"-adapter=http",
		"-listen=:9090",
		"-f-low=60",
		"-f-high=90",
		"-model=fourier",
		"-receiver-terms=9",
		"-cterms=8",
		"-wterms=7",
		"-ignore-percent=10",
		"-hot-load-cable=none",
		"-interval=30m",
		"-storage=redis",
		"-log-format=json",
		"-log-level=debug",
	}

	cfg := ParseFlags()

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if cfg.Observation != "obs-2026-08" {
		t.Errorf("Observation = %q, want %q", cfg.Observation, "obs-2026-08")
	}
	if cfg.FLow != 60 || cfg.FHigh != 90 {
		t.Errorf("band = [%g, %g], want [60, 90]", cfg.FLow, cfg.FHigh)
	}
	if cfg.Model != "fourier" {
		t.Errorf("Model = %q, want %q", cfg.Model, "fourier")
	}
	if cfg.ReceiverTerms != 9 {
		t.Errorf("ReceiverTerms = %d, want 9", cfg.ReceiverTerms)
	}
	if cfg.CTerms != 8 || cfg.WTerms != 7 {
		t.Errorf("cterms/wterms = %d/%d, want 8/7", cfg.CTerms, cfg.WTerms)
	}
	if cfg.HotLoadCable != "none" {
		t.Errorf("HotLoadCable = %q, want %q", cfg.HotLoadCable, "none")
	}
	if cfg.Interval != 30*time.Minute {
		t.Errorf("Interval = %v, want 30m", cfg.Interval)
	}
	if cfg.Storage != "redis" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "redis")
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "debug" {
		t.Errorf("logging = %q/%q, want json/debug", cfg.LogFormat, cfg.LogLevel)
	}
}

func validConfig() *Config {
	return &Config{
		Listen:        ":8081",
		Storage:       "memory",
		Observation:   "obs",
		Adapter:       "file",
		FLow:          50,
		FHigh:         100,
		Model:         "polynomial",
		MatchOhm:      50,
		ReceiverTerms: 11,
		SwitchTerms:   7,
		LoadTerms:     5,
		CTerms:        6,
		WTerms:        5,
		IgnorePercent: 7,
		TLoad:         300,
		TLoadNS:       350,
		HotLoadCable:  "semi-rigid",
		Interval:      time.Hour,
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing observation", func(c *Config) { c.Observation = "" }, "observation"},
		{"bad observation name", func(c *Config) { c.Observation = "no spaces" }, "observation"},
		{"missing adapter", func(c *Config) { c.Adapter = "" }, "adapter"},
		{"unknown adapter", func(c *Config) { c.Adapter = "ftp" }, "adapter"},
		{"inverted band", func(c *Config) { c.FLow, c.FHigh = 100, 50 }, "f-high"},
		{"unknown model", func(c *Config) { c.Model = "spline" }, "model"},
		{"zero match", func(c *Config) { c.MatchOhm = 0 }, "match-ohm"},
		{"zero cterms", func(c *Config) { c.CTerms = 0 }, "cterms"},
		{"negative wterms", func(c *Config) { c.WTerms = -2 }, "wterms"},
		{"ignore percent too high", func(c *Config) { c.IgnorePercent = 100 }, "ignore-percent"},
		{"bad cable", func(c *Config) { c.HotLoadCable = "coax" }, "hot-load-cable"},
		{"unknown storage", func(c *Config) { c.Storage = "postgres" }, "storage"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"tls missing files", func(c *Config) { c.TLS.Enabled = true }, "tls"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not name %q", err, tc.wantMsg)
			}
		})
	}
}

package commands

import (
	"strconv"
	"time"

	"buildingsearch/internal/components/chrono"
	"buildingsearch/internal/components/configutil"
	"buildingsearch/internal/components/restyutil"
	"buildingsearch/internal/components/telemetry"
	"buildingsearch/internal/query"
	"buildingsearch/internal/scrapers/hcr"
)

type PacingConfig struct {
	MinMs int `json:"min_ms"`
	MaxMs int `json:"max_ms"`
}

type RetryConfig struct {
	// pointers so an explicit 0 in the config disables the retry
	Redirects      *int `json:"redirects"`
	MalformedPages *int `json:"malformed_pages"`
}

type Config struct {
	BaseUrl           string           `json:"base_url"`
	UserAgent         string           `json:"user_agent"`
	TimeoutSeconds    int              `json:"timeout_seconds"`
	RequestsPerSecond float64          `json:"requests_per_second"`
	CloudflareBypass  bool             `json:"cloudflare_bypass"`
	Pacing            PacingConfig     `json:"pacing"`
	Retry             RetryConfig      `json:"retry"`
	DumpDir           string           `json:"dump_dir"`
	PerfStatsSeconds  int              `json:"perf_stats_seconds"`
	Telemetry         telemetry.Config `json:"telemetry"`
}

func intPtr(n int) *int {
	return &n
}

func defaultConfig() Config {
	policy := hcr.DefaultRetryPolicy()
	return Config{
		BaseUrl:        hcr.DefaultBaseUrl,
		UserAgent:      hcr.DefaultUserAgent,
		TimeoutSeconds: 30,
		Pacing: PacingConfig{
			MinMs: 100,
			MaxMs: 1000,
		},
		Retry: RetryConfig{
			Redirects:      intPtr(policy.Redirects),
			MalformedPages: intPtr(policy.MalformedPages),
		},
	}
}

func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadOrDefault(path, defaultConfig())
	if err != nil {
		return cfg, err
	}
	if *dumpDir != "" {
		cfg.DumpDir = *dumpDir
	}
	return cfg, nil
}

func retryBound(field string, value *int, fallback int) (int, error) {
	if value == nil {
		return fallback, nil
	}
	if *value < 0 {
		return 0, &hcr.InputError{
			Field:  field,
			Value:  strconv.Itoa(*value),
			Reason: "must not be negative",
		}
	}
	return *value, nil
}

func (c Config) retryPolicy() (hcr.RetryPolicy, error) {
	policy := hcr.DefaultRetryPolicy()
	var err error
	policy.Redirects, err = retryBound("retry.redirects", c.Retry.Redirects, policy.Redirects)
	if err != nil {
		return policy, err
	}
	policy.MalformedPages, err = retryBound("retry.malformed_pages", c.Retry.MalformedPages, policy.MalformedPages)
	if err != nil {
		return policy, err
	}
	return policy, nil
}

func (c Config) delay() chrono.DelayAPI {
	if *noDelay {
		return chrono.NoDelay{}
	}
	return chrono.NewRandomDelay(
		time.Duration(c.Pacing.MinMs)*time.Millisecond,
		time.Duration(c.Pacing.MaxMs)*time.Millisecond,
	)
}

// driverFactory gives every query a fresh driver sharing the config.
func (c Config) driverFactory(tel telemetry.API) (query.DriverFactory, error) {
	var dump restyutil.Output
	if c.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(c.DumpDir)
		if err != nil {
			return nil, err
		}
		dump = out
	}
	retry, err := c.retryPolicy()
	if err != nil {
		return nil, err
	}

	opts := hcr.DriverOptions{
		Client: hcr.ClientOptions{
			BaseUrl:           c.BaseUrl,
			UserAgent:         c.UserAgent,
			Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
			RequestsPerSecond: c.RequestsPerSecond,
			CloudflareBypass:  c.CloudflareBypass,
			Dump:              dump,
		},
		Retry: retry,
	}
	delay := c.delay()

	return func() (query.Driver, error) {
		return hcr.NewDriver(opts, delay, tel)
	}, nil
}

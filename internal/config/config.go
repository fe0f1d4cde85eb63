// Package config loads the runtime's tunable knobs from a YAML file, in
// the style of the teacher's gopkg.in/yaml.v3-backed manifest parsing
// (internal/sync/parser.go): a struct tagged with `yaml:"..."`, populated
// via os.ReadFile + yaml.Unmarshal, with defaults applied for anything the
// file omits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig groups every runtime-tunable knob named in SPEC_FULL.md's
// ambient configuration section: event history size, webhook retry/rate
// limit/breaker defaults, and the DLQ sweep schedule.
type RuntimeConfig struct {
	EventHistorySize int `yaml:"event_history_size"`

	Webhook struct {
		Workers       int `yaml:"workers"`
		RateLimit     struct {
			Capacity      float64 `yaml:"capacity"`
			RefillPerSec  float64 `yaml:"refill_per_sec"`
			MaxConcurrent int     `yaml:"max_concurrent"`
		} `yaml:"rate_limit"`
		Breaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			OpenTimeout      time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"webhook"`

	DLQ struct {
		MaxRetries      int           `yaml:"max_retries"`
		AutoRetry       bool          `yaml:"auto_retry"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		SweepCron       string        `yaml:"sweep_cron"`
		RetentionPeriod time.Duration `yaml:"retention_period"`
	} `yaml:"dlq"`
}

// Default returns the reference defaults, matching the *Default*() helpers
// in events/webhooks (DefaultDLQConfig, DefaultRateLimitConfig,
// DefaultBreakerConfig).
func Default() RuntimeConfig {
	var c RuntimeConfig
	c.EventHistorySize = 1000
	c.Webhook.Workers = 4
	c.Webhook.RateLimit.Capacity = 10
	c.Webhook.RateLimit.RefillPerSec = 5
	c.Webhook.RateLimit.MaxConcurrent = 10
	c.Webhook.Breaker.FailureThreshold = 5
	c.Webhook.Breaker.SuccessThreshold = 2
	c.Webhook.Breaker.OpenTimeout = 30 * time.Second
	c.DLQ.MaxRetries = 3
	c.DLQ.AutoRetry = false
	c.DLQ.RetryDelay = 60 * time.Second
	c.DLQ.SweepCron = "@every 1h"
	c.DLQ.RetentionPeriod = 7 * 24 * time.Hour
	return c
}

// Load reads path as YAML into a copy of Default(), so a file that only
// overrides a handful of fields leaves everything else at its reference
// value.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

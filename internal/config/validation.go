package config

import (
	"fmt"
	"strings"
	"time"
)

var knownStrategies = map[string]bool{
	"static":   true,
	"rendered": true,
	"stealth":  true,
	"identity": true,
}

func validate(c *Config) error {
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be > 0")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay must be >= 0")
	}
	for name, d := range map[string]time.Duration{
		"static timeout":   c.StaticTimeout,
		"render timeout":   c.RenderTimeout,
		"stealth timeout":  c.StealthTimeout,
		"identity timeout": c.IdentityTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	seen := make(map[string]bool)
	for _, s := range c.Strategies {
		s = strings.ToLower(strings.TrimSpace(s))
		if !knownStrategies[s] {
			return fmt.Errorf("unknown strategy %q", s)
		}
		if seen[s] {
			return fmt.Errorf("strategy %q listed twice", s)
		}
		seen[s] = true
	}
	if c.ProxyCooldown < 0 {
		return fmt.Errorf("proxy cooldown must be >= 0")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retries must be >= 1")
	}
	if c.MinBodyLength < 0 {
		return fmt.Errorf("min body length must be >= 0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be > 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.DownloadWorkers <= 0 || c.DownloadWorkers > MaxDownloadWorkers {
		return fmt.Errorf("workers must be between 1 and %d", MaxDownloadWorkers)
	}
	return nil
}

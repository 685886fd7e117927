package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Identity
	UserAgent     string
	AltUserAgent  string
	Proxies       []string
	ProxyCooldown time.Duration

	// Acquisition ladder
	Strategies      []string
	StaticTimeout   time.Duration
	RenderTimeout   time.Duration
	StealthTimeout  time.Duration
	IdentityTimeout time.Duration
	RetryAttempts   int

	// Block detection
	MinBodyLength   int
	BlockSignatures []string

	// Operations
	OperationTimeout time.Duration
	PageDelay        time.Duration

	// Rate Limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Browser
	BrowserHeadless bool
	ChromePath      string

	// Sites
	SitesFile string

	// Caching
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64
	CacheFallback     bool

	// Downloads
	DownloadWorkers int
}

// Defaults returns a Config populated with the built-in defaults
func Defaults() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		UserAgent:         DefaultUserAgent,
		AltUserAgent:      DefaultAltUserAgent,
		ProxyCooldown:     DefaultProxyCooldown,
		Strategies:        append([]string(nil), DefaultStrategies...),
		StaticTimeout:     DefaultStaticTimeout,
		RenderTimeout:     DefaultRenderTimeout,
		StealthTimeout:    DefaultStealthTimeout,
		IdentityTimeout:   DefaultIdentityTimeout,
		RetryAttempts:     DefaultRetryAttempts,
		MinBodyLength:     DefaultMinBodyLength,
		OperationTimeout:  DefaultOperationTimeout,
		PageDelay:         DefaultPageDelay,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		BrowserHeadless:   DefaultBrowserHeadless,
		CacheTTL:          DefaultCacheTTL,
		CacheMaxSizeBytes: DefaultCacheMaxSizeBytes,
		DownloadWorkers:   DefaultDownloadWorkers,
	}
}

// Load builds a Config by combining defaults, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if cmd != nil {
		if err := applyFlags(cfg, cmd); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides cfg from PRICECRAWL_* variables
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PRICECRAWL_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := getenv("PRICECRAWL_PROXIES"); v != "" {
		cfg.Proxies = splitList(v)
	}
	if v := getenv("PRICECRAWL_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := getenv("PRICECRAWL_SITES"); v != "" {
		cfg.SitesFile = v
	}
	if v := getenv("PRICECRAWL_STRATEGIES"); v != "" {
		cfg.Strategies = splitList(v)
	}
	if v := getenv("PRICECRAWL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRICECRAWL_TIMEOUT: %w", err)
		}
		cfg.OperationTimeout = d
	}
	if v := getenv("PRICECRAWL_PAGE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRICECRAWL_PAGE_DELAY: %w", err)
		}
		cfg.PageDelay = d
	}
	if v := getenv("PRICECRAWL_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PRICECRAWL_RATE_LIMIT: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v := getenv("PRICECRAWL_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRICECRAWL_HEADLESS: %w", err)
		}
		cfg.BrowserHeadless = b
	}
	if v := getenv("PRICECRAWL_CACHE_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRICECRAWL_CACHE_FALLBACK: %w", err)
		}
		cfg.CacheFallback = b
	}
	return nil
}

// applyFlags overrides cfg with flags the user set explicitly
func applyFlags(cfg *Config, cmd *cobra.Command) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("verbose") {
		if v, _ := flags.GetBool("verbose"); v {
			cfg.LogLevel = "debug"
		}
	}
	if changed("quiet") {
		if v, _ := flags.GetBool("quiet"); v {
			cfg.LogLevel = "error"
		}
	}
	if changed("json") {
		cfg.JSONLog, _ = flags.GetBool("json")
	}
	if changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if changed("proxy") {
		cfg.Proxies, _ = flags.GetStringSlice("proxy")
	}
	if changed("proxy-cooldown") {
		cfg.ProxyCooldown, _ = flags.GetDuration("proxy-cooldown")
	}
	if changed("strategies") {
		cfg.Strategies, _ = flags.GetStringSlice("strategies")
	}
	if changed("timeout") {
		cfg.OperationTimeout, _ = flags.GetDuration("timeout")
	}
	if changed("delay") {
		cfg.PageDelay, _ = flags.GetDuration("delay")
	}
	if changed("retries") {
		cfg.RetryAttempts, _ = flags.GetInt("retries")
	}
	if changed("rate-limit") {
		cfg.RateLimitRPS, _ = flags.GetFloat64("rate-limit")
	}
	if changed("headless") {
		cfg.BrowserHeadless, _ = flags.GetBool("headless")
	}
	if changed("chrome-path") {
		cfg.ChromePath, _ = flags.GetString("chrome-path")
	}
	if changed("sites") {
		cfg.SitesFile, _ = flags.GetString("sites")
	}
	if changed("cache-fallback") {
		cfg.CacheFallback, _ = flags.GetBool("cache-fallback")
	}
	if changed("min-body") {
		cfg.MinBodyLength, _ = flags.GetInt("min-body")
	}
	if changed("block-signature") {
		cfg.BlockSignatures, _ = flags.GetStringSlice("block-signature")
	}
	if changed("workers") {
		cfg.DownloadWorkers, _ = flags.GetInt("workers")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

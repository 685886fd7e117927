package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultAltUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"
	DefaultProxyCooldown     = 5 * time.Minute
	DefaultStaticTimeout     = 15 * time.Second
	DefaultRenderTimeout     = 45 * time.Second
	DefaultStealthTimeout    = 60 * time.Second
	DefaultIdentityTimeout   = 60 * time.Second
	DefaultOperationTimeout  = 5 * time.Minute
	DefaultPageDelay         = 2 * time.Second
	DefaultMinBodyLength     = 1000
	DefaultRetryAttempts     = 2
	DefaultRateLimitRPS      = 1.0
	DefaultRateLimitBurst    = 2
	DefaultBrowserHeadless   = true
	DefaultCacheTTL          = 30 * time.Minute
	DefaultCacheMaxSizeBytes = 50 * 1024 * 1024 // 50MB
	DefaultDownloadWorkers   = 4
	MaxDownloadWorkers       = 16
)

// DefaultStrategies is the full escalation ladder, cheapest first
var DefaultStrategies = []string{"static", "rendered", "stealth", "identity"}

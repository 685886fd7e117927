// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/law-makers/pricecrawl/internal/cache"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dynamic"
	"github.com/law-makers/pricecrawl/internal/engine/static"
	"github.com/law-makers/pricecrawl/internal/proxy"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/law-makers/pricecrawl/internal/scrape"
	"github.com/law-makers/pricecrawl/internal/site"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands. Browser
// sessions are not part of it: every operation opens and closes its own.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter ratelimit.RateLimiter
	Proxies     *proxy.ProxyPool
	HTTPClient  *http.Client
	Static      *static.Scraper
	Sites       *site.Registry
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the in-memory page cache
//   - Creates the per-domain rate limiter and the proxy pool
//   - Initializes the HTTP client and the plain-fetch strategy
//   - Loads the built-in sites plus any sites file
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogging(cfg)

	sites := site.Builtin()
	if cfg.SitesFile != "" {
		extra, err := site.LoadFile(cfg.SitesFile)
		if err != nil {
			return nil, err
		}
		for _, s := range extra {
			sites.Add(s)
		}
		logger.Debug().
			Str("file", cfg.SitesFile).
			Int("sites", len(extra)).
			Msg("Site definitions loaded")
	}

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes, cfg.CacheTTL)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Dur("ttl", cfg.CacheTTL).
		Msg("Memory cache initialized")

	rateLimiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	proxies := proxy.NewProxyPool(cfg.Proxies).WithCooldown(cfg.ProxyCooldown)

	httpClient := &http.Client{
		Timeout: cfg.StaticTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryAttempts
	rc.InitialBackoff = 500 * time.Millisecond

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: rateLimiter,
		Proxies:     proxies,
		HTTPClient:  httpClient,
		Static:      static.New(rateLimiter, proxies, httpClient, rc, cfg.UserAgent),
		Sites:       sites,
		startTime:   time.Now(),
	}

	logger.Debug().
		Strs("strategies", cfg.Strategies).
		Int("proxies", proxies.Len()).
		Msg("Application initialized successfully")
	return app, nil
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = os.Stderr
		cw.TimeFormat = time.Kitchen
	})
	if cfg.JSONLog {
		w = os.Stderr
	}

	log.Logger = log.Output(w).With().Timestamp().Logger()
	return log.Logger
}

// Plan builds the acquisition ladder for s. Browser steps render in b.
func (a *Application) Plan(s *site.Site, b dynamic.Browser) (engine.Plan, error) {
	names := a.Config.Strategies
	if len(s.Strategies) > 0 {
		names = s.Strategies
	}

	minBody := a.Config.MinBodyLength
	if s.MinBodyLength > 0 {
		minBody = s.MinBodyLength
	}
	sigs := append(append([]string(nil), a.Config.BlockSignatures...), s.BlockSignatures...)
	validator := engine.NewBlockValidator(minBody, sigs...)

	plan := make(engine.Plan, 0, len(names))
	for _, name := range names {
		switch name {
		case static.Name:
			plan = append(plan, engine.Step{Strategy: a.Static, Timeout: a.Config.StaticTimeout, Validate: validator.Shell()})
		case dynamic.Rendered:
			plan = append(plan, engine.Step{Strategy: dynamic.NewRendered(b, a.RateLimiter, a.Config.UserAgent), Timeout: a.Config.RenderTimeout, Validate: validator})
		case dynamic.Stealth:
			plan = append(plan, engine.Step{Strategy: dynamic.NewStealth(b, a.RateLimiter, a.Config.UserAgent), Timeout: a.Config.StealthTimeout, Validate: validator})
		case dynamic.Identity:
			plan = append(plan, engine.Step{Strategy: dynamic.NewIdentity(b, a.RateLimiter, a.Config.AltUserAgent), Timeout: a.Config.IdentityTimeout, Validate: validator})
		default:
			return nil, fmt.Errorf("unknown strategy %q for site %s", name, s.Name)
		}
	}
	if len(plan) == 0 {
		return nil, engine.ErrEmptyPlan
	}
	return plan, nil
}

// NewSession returns an unstarted browser session. Each call rotates to the
// next proxy when proxies are configured.
func (a *Application) NewSession() scrape.Session {
	return dynamic.NewSession(dynamic.SessionOptions{
		Headless:   a.Config.BrowserHeadless,
		ChromePath: a.Config.ChromePath,
		UserAgent:  a.Config.UserAgent,
		Proxy:      a.Proxies.GetNext(),
	})
}

// ServiceOptions are the per-command knobs of a scrape service
type ServiceOptions struct {
	Site      string
	Headers   map[string]string
	PageParam string
	OnPage    func(outcome models.PageOutcome, done, total int)
}

// Service returns a scrape service wired to the application's dependencies
func (a *Application) Service(opts ServiceOptions) (*scrape.Service, error) {
	return scrape.New(scrape.Options{
		Registry:      a.Sites,
		Site:          opts.Site,
		Plan:          a.Plan,
		NewSession:    a.NewSession,
		Headers:       opts.Headers,
		UserAgent:     a.Config.UserAgent,
		Timeout:       a.Config.OperationTimeout,
		PageDelay:     a.Config.PageDelay,
		Cache:         a.Cache,
		CacheTTL:      a.Config.CacheTTL,
		CacheFallback: a.Config.CacheFallback,
		PageParam:     opts.PageParam,
		OnPage:        opts.OnPage,
		Sink:          diag.NewZerolog(*a.Logger),
	})
}

// Close gracefully shuts down the application and all its resources.
//
// A context with a timeout should be provided to prevent indefinite blocking.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}

// internal/engine/dynamic/session.go
package dynamic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/reqctx"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionClosed is returned by Render after Close
	ErrSessionClosed = errors.New("browser session is closed")
	// ErrBrowserNotFound means no Chrome executable could be started
	ErrBrowserNotFound = errors.New("chrome browser not found")
)

// Browser renders pages in a real browser. *Session is the chromedp
// implementation; tests substitute a fake.
type Browser interface {
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
}

// SessionOptions configures the browser process
type SessionOptions struct {
	Headless   bool
	ChromePath string
	UserAgent  string
	Proxy      string
	ExtraArgs  []chromedp.ExecAllocatorOption
}

// Session owns one browser process for the lifetime of a top-level
// operation. The process starts on the first Render and is released by
// Close, which is safe to call more than once.
type Session struct {
	opts SessionOptions

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	closed        bool
}

// NewSession creates a session without launching the browser
func NewSession(opts SessionOptions) *Session {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	return &Session{opts: opts}
}

// Releasable is a Browser owned by one operation
type Releasable interface {
	Browser
	Close() error
}

// WithSession runs fn with a browser from open and closes it on every exit
// path, including panics, which are re-raised after the browser is released.
// A failed Close is logged and does not replace fn's result.
func WithSession(ctx context.Context, open func() Releasable, fn func(Releasable) error) error {
	b := open()
	defer func() {
		if err := b.Close(); err != nil {
			logger := reqctx.Logger(ctx)
			logger.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()
	return fn(b)
}

// Started reports whether the browser process has been launched
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

func (s *Session) allocatorOptions(chromePath string) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1366,768"),
		chromedp.UserAgent(s.opts.UserAgent),
	}

	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}

	if s.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if s.opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(s.opts.Proxy))
	}

	return append(allocOpts, s.opts.ExtraArgs...)
}

// browser returns the running browser context, launching it on first use.
// The process outlives ctx, which only bounds how long the launch may take.
// Must be called with s.mu held.
func (s *Session) browser(ctx context.Context) (context.Context, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.started {
		return s.browserCtx, nil
	}

	start := time.Now()
	chromePath := FindChrome(s.opts.ChromePath)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.allocatorOptions(chromePath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run launches the process and opens the first tab. chromedp
	// waits for the DevTools URL without watching ctx, so race it here.
	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-launched:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, launchError(err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser launch abandoned: %w", ctx.Err())
	}

	s.allocCtx, s.allocCancel = allocCtx, allocCancel
	s.browserCtx, s.browserCancel = browserCtx, browserCancel
	s.started = true

	log.Debug().Str("chrome", chromePath).Dur("elapsed", time.Since(start)).Msg("Browser session started")
	return s.browserCtx, nil
}

func launchError(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrBrowserNotFound, err)
	}
	return fmt.Errorf("failed to launch browser: %w", err)
}

// Render opens a new tab, performs the request and closes the tab. The tab
// is torn down as soon as ctx ends.
func (s *Session) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	s.mu.Lock()
	browserCtx, err := s.browser(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	res, err := render(tabCtx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return res, err
}

// Close releases the browser process. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.started {
		return nil
	}

	// Closing the first tab's context closes the browser gracefully
	s.browserCancel()
	s.allocCancel()

	log.Debug().Msg("Browser session closed")
	return nil
}

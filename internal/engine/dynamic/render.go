package dynamic

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Viewport is the emulated screen size
type Viewport struct {
	Width  int64
	Height int64
	Mobile bool
}

// RenderRequest describes one browser navigation
type RenderRequest struct {
	URL            string
	Headers        map[string]string
	UserAgent      string
	AcceptLanguage string
	Viewport       *Viewport

	// WarmUpURL is visited before URL, e.g. the site's home page
	WarmUpURL    string
	Evasion      bool
	Interact     bool
	ClearCookies bool
	// BlockResources skips images, fonts and media
	BlockResources bool

	// Settle is how long to let scripts run after load
	Settle time.Duration
}

// RenderResult is the rendered page
type RenderResult struct {
	URL        string
	FinalURL   string
	StatusCode int
	Title      string
	HTML       string
	Headers    map[string]string
}

var blockedResources = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico", "*.avif",
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.mp4", "*.webm",
}

// render runs req inside an already created tab context
func render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	res := &RenderResult{URL: req.URL, Headers: make(map[string]string)}

	// Status and headers of the last document response win, so redirects
	// and the warm-up navigation are superseded by the target page.
	var mu sync.Mutex
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if ev, ok := ev.(*network.EventResponseReceived); ok && ev.Type == network.ResourceTypeDocument {
			mu.Lock()
			defer mu.Unlock()
			res.StatusCode = int(ev.Response.Status)
			res.Headers = make(map[string]string, len(ev.Response.Headers))
			for key, value := range ev.Response.Headers {
				if s, ok := value.(string); ok {
					res.Headers[key] = s
				}
			}
		}
	})

	tasks := chromedp.Tasks{network.Enable()}

	if req.ClearCookies {
		tasks = append(tasks, network.ClearBrowserCookies(), network.ClearBrowserCache())
	}
	if req.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(req.UserAgent)
		if req.AcceptLanguage != "" {
			ua = ua.WithAcceptLanguage(req.AcceptLanguage)
		}
		tasks = append(tasks, ua)
	}
	if req.Viewport != nil {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(req.Viewport.Width, req.Viewport.Height, 1, req.Viewport.Mobile))
	}
	if len(req.Headers) > 0 {
		headers := make(network.Headers, len(req.Headers))
		for k, v := range req.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	if req.BlockResources {
		tasks = append(tasks, network.SetBlockedURLs(blockedResources))
	}
	if req.Evasion {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionScript).Do(ctx)
			return err
		}))
	}

	if req.WarmUpURL != "" {
		tasks = append(tasks,
			chromedp.Navigate(req.WarmUpURL),
			pause(jitter(1500*time.Millisecond)),
		)
		if req.Interact {
			tasks = append(tasks, humanize())
		}
	}

	var html, title, location string
	tasks = append(tasks,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		pause(req.Settle),
	)
	if req.Interact {
		tasks = append(tasks, humanize())
	}
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	res.Title = title
	res.FinalURL = location
	res.HTML = html
	return res, nil
}

// pause sleeps for d unless the context ends first
func pause(d time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func jitter(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int64N(int64(base/2)+1))
}

// humanize moves the mouse along a few random points and scrolls a little
func humanize() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		x, y := 100.0, 100.0
		for i := 0; i < 4; i++ {
			x += float64(rand.IntN(300))
			y += float64(rand.IntN(200))
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
				return err
			}
			if err := pause(time.Duration(80+rand.IntN(170)) * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return chromedp.Evaluate(`window.scrollBy(0, 300 + Math.floor(Math.random() * 400))`, nil).Do(ctx)
	})
}

// evasionScript hides the most common automation fingerprints
const evasionScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-IN', 'en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
if (originalQuery) {
  window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters)
  );
}
`

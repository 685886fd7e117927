package dynamic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/pkg/models"
)

type fakeBrowser struct {
	mu       sync.Mutex
	requests []RenderRequest
	result   *RenderResult
	err      error
}

func (f *fakeBrowser) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBrowser) last(t *testing.T) RenderRequest {
	t.Helper()
	if len(f.requests) == 0 {
		t.Fatal("browser was not called")
	}
	return f.requests[len(f.requests)-1]
}

func newFake() *fakeBrowser {
	return &fakeBrowser{result: &RenderResult{
		FinalURL:   "https://shop.example/p/1",
		StatusCode: 200,
		Title:      "Widget",
		HTML:       "<html><body>Widget</body></html>",
		Headers:    map[string]string{"content-type": "text/html"},
	}}
}

func TestRenderedFetch(t *testing.T) {
	b := newFake()
	s := NewRendered(b, nil, "")

	page, err := s.Fetch(context.Background(), models.RequestOptions{URL: "https://shop.example/p/1"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.FetchedBy != Rendered {
		t.Errorf("FetchedBy = %q, want %q", page.FetchedBy, Rendered)
	}
	if page.StatusCode != 200 || page.Title != "Widget" || !strings.Contains(page.HTML, "Widget") {
		t.Errorf("unexpected page: %+v", page)
	}

	req := b.last(t)
	if req.Evasion || req.Interact || req.ClearCookies || req.WarmUpURL != "" {
		t.Errorf("rendered request should be plain, got %+v", req)
	}
	if req.UserAgent != config.DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", req.UserAgent)
	}
}

func TestStealthFetch(t *testing.T) {
	b := newFake()
	s := NewStealth(b, nil, "")

	_, err := s.Fetch(context.Background(), models.RequestOptions{
		URL:       "https://shop.example/p/1",
		WarmUpURL: "https://shop.example/",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	req := b.last(t)
	if !req.Evasion || !req.Interact {
		t.Errorf("stealth should enable evasion and interaction, got %+v", req)
	}
	if req.WarmUpURL != "https://shop.example/" {
		t.Errorf("WarmUpURL = %q", req.WarmUpURL)
	}
}

func TestIdentityFetch(t *testing.T) {
	b := newFake()
	s := NewIdentity(b, nil, "")

	_, err := s.Fetch(context.Background(), models.RequestOptions{
		URL:       "https://shop.example/p/1",
		UserAgent: "caller-agent",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	req := b.last(t)
	if req.UserAgent != config.DefaultAltUserAgent {
		t.Errorf("identity should keep its own user agent, got %q", req.UserAgent)
	}
	if !req.ClearCookies || req.Viewport == nil || req.AcceptLanguage == "" {
		t.Errorf("identity should change cookies, viewport and language, got %+v", req)
	}
}

func TestFetchErrors(t *testing.T) {
	b := newFake()
	b.err = errors.New("net::ERR_CONNECTION_RESET")
	s := NewRendered(b, nil, "")

	_, err := s.Fetch(context.Background(), models.RequestOptions{URL: "https://shop.example/"})
	if err == nil || !strings.Contains(err.Error(), "ERR_CONNECTION_RESET") {
		t.Errorf("expected render error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRendered(newFake(), nil, "").Fetch(ctx, models.RequestOptions{URL: "https://shop.example/"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if _, err := NewRendered(nil, nil, "").Fetch(context.Background(), models.RequestOptions{URL: "https://shop.example/"}); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("expected ErrNoBrowser, got %v", err)
	}
}

func TestStrategyNames(t *testing.T) {
	b := newFake()
	for want, s := range map[string]*Scraper{
		Rendered: NewRendered(b, nil, ""),
		Stealth:  NewStealth(b, nil, ""),
		Identity: NewIdentity(b, nil, ""),
	} {
		if s.Name() != want {
			t.Errorf("Name() = %q, want %q", s.Name(), want)
		}
	}
}

package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/proxy"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/law-makers/pricecrawl/pkg/models"
)

func testRetry(attempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestScraper_Fetch_BasicHTML(t *testing.T) {
	var gotUA, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Test")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Hello</title></head><body><h1>Hello World</h1></body></html>`))
	}))
	defer server.Close()

	scraper := New(nil, nil, server.Client(), testRetry(1), "TestScraper/1.0")

	page, err := scraper.Fetch(context.Background(), models.RequestOptions{
		URL:     server.URL + "/p/1",
		Headers: map[string]string{"X-Test": "yes"},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if page.StatusCode != 200 {
		t.Errorf("Expected status code 200, got %d", page.StatusCode)
	}
	if page.FetchedBy != "static" {
		t.Errorf("Expected fetched_by static, got %s", page.FetchedBy)
	}
	if gotUA != "TestScraper/1.0" {
		t.Errorf("Expected default user agent, got %s", gotUA)
	}
	if gotHeader != "yes" {
		t.Errorf("Expected custom header to be sent")
	}
	if page.Headers["Content-Type"] != "text/html" {
		t.Errorf("Expected response headers captured, got %v", page.Headers)
	}
}

func TestScraper_Fetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	scraper := New(nil, nil, server.Client(), testRetry(3), "")
	page, err := scraper.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.StatusCode != 200 || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected success on third call, got status %d after %d calls", page.StatusCode, calls)
	}
}

func TestScraper_Fetch_ReturnsBlockedResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Access Denied"))
	}))
	defer server.Close()

	scraper := New(nil, nil, server.Client(), testRetry(3), "")
	page, err := scraper.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	if err != nil {
		t.Fatalf("Expected the 403 page to be returned for validation, got %v", err)
	}
	if page.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", page.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected 403 not to be retried, got %d calls", calls)
	}
}

func TestScraper_Fetch_RotatesProxies(t *testing.T) {
	var seenHost string
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.URL.Host
		w.Write([]byte("<html><body>via proxy</body></html>"))
	}))
	defer proxyServer.Close()

	// The first proxy refuses connections
	pool := proxy.NewProxyPool([]string{"http://127.0.0.1:1", proxyServer.URL})
	scraper := New(nil, pool, &http.Client{Timeout: 2 * time.Second}, testRetry(2), "")

	page, err := scraper.Fetch(context.Background(), models.RequestOptions{URL: "http://shop.example.test/p/1"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.HTML != "<html><body>via proxy</body></html>" {
		t.Errorf("Unexpected body: %q", page.HTML)
	}
	if seenHost != "shop.example.test" {
		t.Errorf("Expected proxied request for shop.example.test, got %q", seenHost)
	}
	if next := pool.GetNext(); next != proxyServer.URL {
		t.Errorf("Expected failed proxy to be skipped, got %s", next)
	}
}

func TestScraper_Fetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	scraper := New(nil, nil, server.Client(), testRetry(3), "")
	if _, err := scraper.Fetch(ctx, models.RequestOptions{URL: server.URL}); err == nil {
		t.Error("Expected error when context times out")
	}
}

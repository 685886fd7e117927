package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestDomainLimiter_SharesBucketAcrossSubdomains(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)

	if !dl.Allow("https://www.myntra.com/shirts") {
		t.Fatal("Expected first request to be allowed")
	}
	if dl.Allow("https://myntra.com/jeans") {
		t.Error("Expected bare host to share the www bucket")
	}
	if dl.Allow("https://m.myntra.com/jeans") {
		t.Error("Expected mobile host to share the bucket")
	}
	if !dl.Allow("https://www.flipkart.com/search") {
		t.Error("Expected a different site to have its own bucket")
	}
}

func TestDomainLimiter_WaitHonoursContext(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	dl.Allow("https://www.amazon.in/dp/X")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := dl.Wait(ctx, "https://www.amazon.in/dp/Y"); err == nil {
		t.Error("Expected Wait to fail when the context ends first")
	}
}

func TestDomainLimiter_SetLimit(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	dl.SetLimit("www.example.com", 1000, 5)

	for i := 0; i < 5; i++ {
		if !dl.Allow("https://example.com/p") {
			t.Fatalf("Expected request %d within raised burst to be allowed", i)
		}
	}
}

func TestUnlimited(t *testing.T) {
	var l RateLimiter = Unlimited{}
	if err := l.Wait(context.Background(), "https://x"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !l.Allow("anything") {
		t.Error("Expected Unlimited to allow")
	}
}

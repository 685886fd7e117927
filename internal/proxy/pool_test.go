package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProxyPool(t *testing.T) {
	pool := NewProxyPool([]string{"http://p1", "http://p2", "http://p3"})

	// Test rotation
	assert.Equal(t, "http://p1", pool.GetNext())
	assert.Equal(t, "http://p2", pool.GetNext())
	assert.Equal(t, "http://p3", pool.GetNext())
	assert.Equal(t, "http://p1", pool.GetNext())

	// Should skip p2
	pool.MarkFailed("http://p2")
	assert.Equal(t, "http://p3", pool.GetNext())
	assert.Equal(t, "http://p1", pool.GetNext())
	assert.Equal(t, "http://p3", pool.GetNext())

	// Should include p2 again
	pool.MarkHealthy("http://p2")
	assert.Equal(t, "http://p1", pool.GetNext())
	assert.Equal(t, "http://p2", pool.GetNext())
}

func TestProxyPool_Normalises(t *testing.T) {
	pool := NewProxyPool([]string{" 10.0.0.1:8080 ", "", "http://10.0.0.1:8080", "socks5://10.0.0.2:1080"})

	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, "http://10.0.0.1:8080", pool.GetNext())
	assert.Equal(t, "socks5://10.0.0.2:1080", pool.GetNext())
}

func TestProxyPool_CooldownExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := NewProxyPool([]string{"http://p1", "http://p2"}).WithCooldown(time.Minute)
	pool.now = func() time.Time { return now }

	pool.MarkFailed("http://p1")
	assert.Equal(t, "http://p2", pool.GetNext())
	assert.Equal(t, "http://p2", pool.GetNext())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, "http://p1", pool.GetNext())
}

func TestProxyPool_AllFailed(t *testing.T) {
	pool := NewProxyPool([]string{"http://p1", "http://p2"})
	pool.MarkFailed("http://p1")
	pool.MarkFailed("http://p2")

	assert.NotEmpty(t, pool.GetNext(), "falls back to a cooling proxy rather than none")
}

func TestProxyPool_Empty(t *testing.T) {
	var nilPool *ProxyPool
	assert.Equal(t, "", nilPool.GetNext())
	assert.Equal(t, 0, nilPool.Len())
	nilPool.MarkFailed("x")

	assert.Equal(t, "", NewProxyPool(nil).GetNext())
}

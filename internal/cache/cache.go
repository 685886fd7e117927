// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Cache keeps the last good copy of acquired pages.
//
// It backs the caller-level fallback policy: when every acquisition strategy
// fails, a recent copy of the same URL may be served instead.
type Cache interface {
	// Get retrieves a cached page by key.
	Get(key string) (*models.PageData, bool)

	// Set stores a page with the specified TTL, replacing any previous entry.
	Set(key string, data *models.PageData, ttl time.Duration) error

	// Delete removes a cached page by key.
	// Should not error if the key doesn't exist.
	Delete(key string) error

	// Close stops background cleanup.
	Close()
}

// cacheEntry represents a cached page with metadata
type cacheEntry struct {
	Data      *models.PageData
	ExpiresAt time.Time
	Key       string
	Size      int64
}

// MemoryCache is an in-memory page cache with LRU eviction by byte size
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.Mutex
	maxSize int64
	size    int64
	ttl     time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// Stats is a snapshot of cache usage
type Stats struct {
	Entries int
	Bytes   int64
	MaxSize int64
	Hits    uint64
	Misses  uint64
}

// NewMemoryCache creates a new in-memory cache. ttl is used when Set is
// called without one.
func NewMemoryCache(maxSizeBytes int64, ttl time.Duration) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 50 * 1024 * 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	cache := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		ttl:     ttl,
		ctx:     ctx,
		cancel:  cancel,
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves a cached page and marks it most recently used
func (mc *MemoryCache) Get(key string) (*models.PageData, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		return nil, false
	}

	entry := element.Value.(*cacheEntry)
	if time.Now().After(entry.ExpiresAt) {
		mc.misses++
		mc.removeElement(element)
		return nil, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++

	log.Debug().Str("key", key).Msg("Cache hit")
	return entry.Data, true
}

// Set stores a page, evicting least recently used entries to fit
func (mc *MemoryCache) Set(key string, data *models.PageData, ttl time.Duration) error {
	if data == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = mc.ttl
	}

	size := estimateSize(data)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
	}

	for mc.size+size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	entry := &cacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		Key:       key,
		Size:      size,
	}
	mc.store[key] = mc.lruList.PushFront(entry)
	mc.size += size

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", size).
		Msg("Cached page")

	return nil
}

// Delete removes a cached page
func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
	}
	return nil
}

// Close stops the background cleanup goroutine
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// Stats returns cache usage counters
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return Stats{
		Entries: mc.lruList.Len(),
		Bytes:   mc.size,
		MaxSize: mc.maxSize,
		Hits:    mc.hits,
		Misses:  mc.misses,
	}
}

// removeElement must be called with the lock held
func (mc *MemoryCache) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= entry.Size
}

// evictLRU must be called with the lock held
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	log.Debug().Str("key", element.Value.(*cacheEntry).Key).Msg("Evicted from cache (LRU)")
	mc.removeElement(element)
}

// cleanupExpired periodically removes expired entries
func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				if now.After(element.Value.(*cacheEntry).ExpiresAt) {
					mc.removeElement(element)
				}
			}
			mc.mu.Unlock()
		case <-mc.ctx.Done():
			return
		}
	}
}

func estimateSize(data *models.PageData) int64 {
	size := int64(len(data.HTML) + len(data.Title) + len(data.URL) + len(data.FinalURL))
	for k, v := range data.Headers {
		size += int64(len(k) + len(v))
	}
	return size + 512
}

// Key normalises a page URL into a cache key: the fragment is dropped and
// query parameters are sorted so equivalent URLs share an entry.
func Key(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = u.Query().Encode()
	return u.String()
}

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryItem stores cached value with expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
}

// IsExpired checks if item has expired at now.
func (m *MemoryItem) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpireAt)
}

// MemoryCache implements Service using in-memory storage with LRU eviction.
// Expiry is lazy on read; Sweep drops abandoned keys and is driven by the caller.
type MemoryCache struct {
	data    map[string]*MemoryItem
	access  map[string]time.Time
	mutex   sync.Mutex
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		Clock:   time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &MemoryCache{
		data:    make(map[string]*MemoryItem),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		now:     cfg.Clock,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	// keep our own copy; callers may reuse the slice
	data = append([]byte(nil), data...)

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	if _, exists := mc.data[key]; !exists && mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}

	if expiration <= 0 {
		expiration = DefaultExpiration
	}

	mc.data[key] = &MemoryItem{
		Value:    data,
		ExpireAt: now.Add(expiration),
	}
	mc.access[key] = now
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mutex.Lock()
	now := mc.now()
	item, exists := mc.data[key]
	if !exists || item.IsExpired(now) {
		if exists {
			delete(mc.data, key)
			delete(mc.access, key)
		}
		mc.mutex.Unlock()
		return ErrCacheMiss
	}
	mc.access[key] = now
	data := item.Value
	mc.mutex.Unlock()

	return decode(data, dest)
}

// TTL returns the remaining lifetime of key.
func (mc *MemoryCache) TTL(key string) (time.Duration, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, ok := mc.data[key]
	if !ok {
		return 0, false
	}
	left := item.ExpireAt.Sub(mc.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

// Sweep removes every entry expired at now and returns how many were dropped.
func (mc *MemoryCache) Sweep(now time.Time) int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	removed := 0
	for key, item := range mc.data {
		if item.IsExpired(now) {
			delete(mc.data, key)
			delete(mc.access, key)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) evictLRU() {
	if len(mc.data) == 0 {
		return
	}

	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, accessTime := range mc.access {
		if first || accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
			first = false
		}
	}

	delete(mc.data, oldestKey)
	delete(mc.access, oldestKey)
}

// Close is a no-op; there is no background goroutine to stop.
func (mc *MemoryCache) Close() error {
	return nil
}

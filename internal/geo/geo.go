package geo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/metrics"
)

// Info holds the location fields attached to a recorded event.
type Info struct {
	Country     string
	CountryCode string
}

// Provider resolves an IP address to a location.
type Provider interface {
	Lookup(ip string) (*Info, error)
	Close() error
}

// StaticProvider answers lookups from a fixed table. Useful in development
// and tests when no GeoIP database is mounted.
type StaticProvider map[string]*Info

func (p StaticProvider) Lookup(ip string) (*Info, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}
	info, ok := p[ip]
	if !ok {
		return nil, fmt.Errorf("no record for %s", ip)
	}
	return info, nil
}

func (p StaticProvider) Close() error { return nil }

// CachedProvider wraps a Provider with a bounded TTL cache.
type CachedProvider struct {
	provider Provider
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	data    map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	info      *Info
	expiresAt time.Time
}

// NewCachedProvider creates a cache of at most maxSize entries.
// m may be nil.
func NewCachedProvider(p Provider, maxSize int, ttl time.Duration, m *metrics.Metrics) *CachedProvider {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CachedProvider{
		provider: p,
		metrics:  m,
		data:     make(map[string]*cacheEntry),
		maxSize:  maxSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Lookup returns the cached location for ip, consulting the provider on a
// miss. Failed lookups return nil and are not cached.
func (c *CachedProvider) Lookup(ip string) *Info {
	if ip == "" || c.provider == nil {
		return nil
	}

	start := time.Now()
	if info, ok := c.get(ip); ok {
		if c.metrics != nil {
			c.metrics.RecordGeoLookup(true, time.Since(start))
		}
		return info
	}

	info, err := c.provider.Lookup(ip)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordGeoLookupFailure(time.Since(start))
		}
		return nil
	}

	c.set(ip, info)
	if c.metrics != nil {
		c.metrics.RecordGeoLookup(false, time.Since(start))
	}
	return info
}

// Close closes the underlying provider.
func (c *CachedProvider) Close() error {
	if c.provider == nil {
		return nil
	}
	return c.provider.Close()
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *CachedProvider) get(ip string) (*Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[ip]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.info, true
}

func (c *CachedProvider) set(ip string, info *Info) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict an arbitrary entry when full
	if _, exists := c.data[ip]; !exists && len(c.data) >= c.maxSize {
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}

	c.data[ip] = &cacheEntry{
		info:      info,
		expiresAt: c.now().Add(c.ttl),
	}
}

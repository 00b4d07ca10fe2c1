package geo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	StaticProvider
	calls int
}

func (p *countingProvider) Lookup(ip string) (*Info, error) {
	p.calls++
	return p.StaticProvider.Lookup(ip)
}

func TestCachedProviderHitsCache(t *testing.T) {
	p := &countingProvider{StaticProvider: StaticProvider{
		"203.0.113.7": {Country: "Indonesia", CountryCode: "ID"},
	}}
	c := NewCachedProvider(p, 10, time.Minute, nil)

	info := c.Lookup("203.0.113.7")
	require.NotNil(t, info)
	assert.Equal(t, "ID", info.CountryCode)

	c.Lookup("203.0.113.7")
	assert.Equal(t, 1, p.calls)
}

func TestCachedProviderExpiry(t *testing.T) {
	p := &countingProvider{StaticProvider: StaticProvider{
		"203.0.113.7": {CountryCode: "ID"},
	}}
	c := NewCachedProvider(p, 10, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Lookup("203.0.113.7")
	now = now.Add(2 * time.Minute)
	c.Lookup("203.0.113.7")
	assert.Equal(t, 2, p.calls)
}

func TestCachedProviderFailuresNotCached(t *testing.T) {
	c := NewCachedProvider(StaticProvider{}, 10, time.Minute, nil)

	assert.Nil(t, c.Lookup("not-an-ip"))
	assert.Nil(t, c.Lookup("198.51.100.1"))
	assert.Nil(t, c.Lookup(""))
	assert.Zero(t, c.Len())
}

func TestCachedProviderRecordsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	c := NewCachedProvider(StaticProvider{
		"203.0.113.7": {CountryCode: "ID"},
	}, 10, time.Minute, m)

	assert.Nil(t, c.Lookup("198.51.100.1"))
	assert.Nil(t, c.Lookup("not-an-ip"))
	require.NotNil(t, c.Lookup("203.0.113.7"))
	require.NotNil(t, c.Lookup("203.0.113.7"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.GeoLookupFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.GeoLookupLatency))
}

func TestCachedProviderBounded(t *testing.T) {
	table := StaticProvider{}
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		table[ip] = &Info{CountryCode: "ID"}
	}
	c := NewCachedProvider(table, 2, time.Minute, nil)

	c.Lookup("10.0.0.1")
	c.Lookup("10.0.0.2")
	c.Lookup("10.0.0.3")
	assert.Equal(t, 2, c.Len())
}

func TestNewMaxMindProviderMissingFile(t *testing.T) {
	_, err := NewMaxMindProvider("/nonexistent/GeoLite2-Country.mmdb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open GeoIP database")
}

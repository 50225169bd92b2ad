package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestTokenBucket_TakeAndRefill(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tb := newTokenBucket(2, 1, start)

	ok, remaining, _ := tb.take(start)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, _, _ = tb.take(start)
	assert.True(t, ok)

	ok, remaining, reset := tb.take(start)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, start.Add(2*time.Second), reset)

	ok, _, _ = tb.take(start.Add(time.Second))
	assert.True(t, ok, "one token refilled after a second")
}

func TestTokenBucket_RefillCapsAtCapacity(t *testing.T) {
	start := time.Now()
	tb := newTokenBucket(3, 10, start)
	_, _, _ = tb.take(start)

	_, remaining, reset := tb.take(start.Add(time.Hour))
	assert.Equal(t, 2, remaining)
	assert.True(t, reset.After(start.Add(time.Hour)))
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})

	ok, info := l.Allow("c1", "/api/runs", "GET")
	require.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = l.Allow("c1", "/api/runs", "GET")
	require.True(t, ok)

	ok, info = l.Allow("c1", "/api/runs", "GET")
	assert.False(t, ok)
	assert.InDelta(t, float64(30*time.Second), float64(info.RetryAfter), float64(time.Millisecond))

	ok, _ = l.Allow("c2", "/api/runs", "GET")
	assert.True(t, ok, "clients have separate buckets")

	clock.Advance(31 * time.Second)
	ok, _ = l.Allow("c1", "/api/runs", "GET")
	assert.True(t, ok)
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("10.0.0.1", "/api/runs", "GET")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("10.0.0.2", "/api/runs", "GET")
	assert.False(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("c", "/api/download", "POST")
		assert.True(t, ok)
	}
	assert.Equal(t, 0, l.Size())
}

func TestLimiter_DownloadTier(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	allowed := 0
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("c", "/api/download", "POST"); ok {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed, "burst bounds back-to-back run starts")

	ok, _ := l.Allow("c", "/api/runs", "GET")
	assert.True(t, ok, "reads are not affected by the download tier")
}

func TestLimiter_PrefixTierSharesBucket(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled: true,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/progress/", Method: "GET", Limit: 2, Window: time.Minute},
		},
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
	})

	ok, _ := l.Allow("c", "/api/progress/a", "GET")
	assert.True(t, ok)
	ok, _ = l.Allow("c", "/api/progress/b", "GET")
	assert.True(t, ok)
	ok, _ = l.Allow("c", "/api/progress/c", "GET")
	assert.False(t, ok)
	assert.Equal(t, 1, l.Size())
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("c", "/health", "GET")
		assert.True(t, ok)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "/api/runs", "GET"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), allowed.Load())
}

func TestLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTTL:       time.Minute,
	})

	l.Allow("old", "/api/runs", "GET")
	clock.Advance(2 * time.Minute)
	l.Allow("fresh", "/api/runs", "GET")
	require.Equal(t, 2, l.Size())

	l.cleanupBuckets()
	assert.Equal(t, 1, l.Size())
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l := NewLimiter(nil)
	defer l.Stop()

	ok, info := l.Allow("c", "/anything", "GET")
	assert.True(t, ok)
	assert.Equal(t, 1000, info.Limit)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	ep := MatchEndpoint("/api/download", "POST", configs)
	require.NotNil(t, ep)
	assert.Equal(t, 20, ep.Limit)

	ep = MatchEndpoint("/api/scheduler/jobs/abc/run", "POST", configs)
	require.NotNil(t, ep)
	assert.Equal(t, "/api/scheduler/jobs/", ep.Path)

	ep = MatchEndpoint("/api/scheduler/jobs", "POST", configs)
	require.NotNil(t, ep)
	assert.Equal(t, "/api/scheduler/jobs", ep.Path)

	assert.Nil(t, MatchEndpoint("/api/download", "GET", configs))
	assert.Equal(t, 0, MatchEndpoint("/health", "HEAD", configs).Limit)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "1.1.1.1, 2.2.2.2")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.True(t, cfg.Whitelist["2.2.2.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}

package api

import (
	"testing"
	"time"

	"hallbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("alice"))

	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow("carol")
	assert.NotContains(t, l.buckets, "alice")
	assert.NotContains(t, l.buckets, "bob")
	assert.Contains(t, l.buckets, "carol")
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("alice"))
	}
	assert.Empty(t, l.buckets)
}

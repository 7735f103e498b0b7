package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rolliki/backend/internal/config"
)

func TestClientRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewClientRateLimiter(config.RateLimitConfig{Requests: 1, Window: time.Second, Burst: 2})
	limiter.WithNowFunc(func() time.Time { return now })

	assert.True(t, limiter.Allow("1.2.3.4"))
	assert.True(t, limiter.Allow("1.2.3.4"))
	assert.False(t, limiter.Allow("1.2.3.4"), "burst exhausted")
	assert.True(t, limiter.Allow("5.6.7.8"), "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("1.2.3.4"), "one token refilled after a window")
}

func TestClientRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewClientRateLimiter(config.RateLimitConfig{Requests: 10, Window: time.Second, Burst: 1})
	limiter.WithNowFunc(func() time.Time { return now })

	limiter.Allow("a")
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(time.Minute)
	limiter.Allow("c")
	assert.Equal(t, 1, limiter.Len())
}

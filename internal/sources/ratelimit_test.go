package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(1, 2)

	// Burst of two is available immediately, the third is not.
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

func TestRateLimiter_Wait(t *testing.T) {
	limiter := NewRateLimiter(100, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	// Two waits at 100/s after the initial token: roughly 20ms.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
}

func TestRateLimiter_SetRate(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.SetRate(1000)

	require.True(t, limiter.Allow())

	// At 1000/s the next token arrives almost immediately.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, limiter.Wait(ctx))
}

func TestRateLimiter_Tokens(t *testing.T) {
	limiter := NewRateLimiter(1, 5)
	assert.InDelta(t, 5, limiter.Tokens(), 0.1)

	limiter.Allow()
	assert.InDelta(t, 4, limiter.Tokens(), 0.1)
}

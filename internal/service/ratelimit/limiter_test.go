package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowConsumesTokens(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("k", 2, 0))
	assert.True(t, l.Allow("k", 2, 0))
	assert.False(t, l.Allow("k", 2, 0), "bucket is drained")
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("a", 1, 0))
	assert.False(t, l.Allow("a", 1, 0))
	assert.True(t, l.Allow("b", 1, 0))
}

func TestLimiterRefills(t *testing.T) {
	l := New()

	require.True(t, l.Allow("k", 1, 100))
	require.False(t, l.Allow("k", 1, 100))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("k", 1, 100))
}

func TestGateAcquireRelease(t *testing.T) {
	g := NewGate(1, 1000)

	require.NoError(t, g.Acquire(context.Background()))

	// second acquire must wait for the slot
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
}

func TestGateCancelledContext(t *testing.T) {
	g := NewGate(1, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, g.Acquire(ctx))
}

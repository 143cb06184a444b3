package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSpacesCalls(t *testing.T) {
	p := New(20*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	// first call is free, the next three wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestUnpacedNeverWaits(t *testing.T) {
	p := Unpaced()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	p := New(time.Hour, 1)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}


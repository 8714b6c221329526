package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_DoublesAndResets(t *testing.T) {
	r := newRetry()
	r.delay = time.Millisecond

	ctx := context.Background()
	assert.True(t, r.wait(ctx))
	assert.Equal(t, 2*time.Millisecond, r.delay)
	assert.True(t, r.wait(ctx))
	assert.Equal(t, 4*time.Millisecond, r.delay)

	r.delay = 3 * time.Second
	r.advance()
	assert.Equal(t, maxBackoff, r.delay)

	r.reset()
	assert.Equal(t, initialBackoff, r.delay)
}

func TestRetry_WaitStopsOnCancel(t *testing.T) {
	r := newRetry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, r.wait(ctx))
	assert.Equal(t, initialBackoff, r.delay, "a cancelled wait does not advance the delay")
}

package render

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameInterval approximates one display refresh at 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameClock emits rendering-frame boundaries.
type FrameClock struct {
	clock    clockwork.Clock
	interval time.Duration
}

// NewFrameClock creates a frame clock ticking every interval on clock.
func NewFrameClock(clock clockwork.Clock, interval time.Duration) *FrameClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameClock{clock: clock, interval: interval}
}

// AfterFrames returns an Ack resolved once n frame boundaries have passed
// since the call.
func (f *FrameClock) AfterFrames(n int) *Ack {
	ack := newAck()
	if n <= 0 {
		ack.resolve()
		return ack
	}
	go func() {
		for range n {
			<-f.clock.After(f.interval)
		}
		ack.resolve()
	}()
	return ack
}

// Ack is a completion signal for a visualization update. It resolves after
// the triggering call has returned; it carries no other ordering guarantee.
type Ack struct {
	done chan struct{}
}

func newAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

func resolvedAck() *Ack {
	a := newAck()
	a.resolve()
	return a
}

func (a *Ack) resolve() {
	close(a.done)
}

// Done is closed when the acknowledgement resolves.
func (a *Ack) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the acknowledgement resolves or ctx ends. Giving up on
// the wait does not cancel the update.
func (a *Ack) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

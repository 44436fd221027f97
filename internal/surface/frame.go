package surface

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-marine/internal/loop"
)

// FrameDriver emits render frames for a Memory surface at a fixed rate. Each
// tick posts one RunFrame onto the loop; a tick that arrives while the
// previous frame is still queued is dropped, so a slow loop sees fewer frames
// rather than a backlog.
type FrameDriver struct {
	mem      *Memory
	poster   loop.Poster
	clock    clockwork.Clock
	interval time.Duration
	inflight atomic.Bool
}

// NewFrameDriver creates a driver ticking fps times per second.
func NewFrameDriver(mem *Memory, poster loop.Poster, clock clockwork.Clock, fps int) *FrameDriver {
	if fps <= 0 {
		fps = 60
	}
	return &FrameDriver{
		mem:      mem,
		poster:   poster,
		clock:    clock,
		interval: time.Second / time.Duration(fps),
	}
}

// Interval returns the time between frames.
func (d *FrameDriver) Interval() time.Duration { return d.interval }

// Run ticks until ctx is cancelled.
func (d *FrameDriver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.Chan():
			d.tick(now)
		}
	}
}

func (d *FrameDriver) tick(now time.Time) {
	if !d.inflight.CompareAndSwap(false, true) {
		return
	}
	ok := d.poster.Post(func() {
		defer d.inflight.Store(false)
		d.mem.RunFrame(now)
	})
	if !ok {
		d.inflight.Store(false)
	}
}

// DelayedLoader returns a Memory.Loader that completes each style load after
// delay on clock, posting the completion onto the loop. A zero delay still
// completes asynchronously, as a real renderer would.
func DelayedLoader(mem *Memory, poster loop.Poster, clock clockwork.Clock, delay time.Duration) func(string, uint64) {
	return func(_ string, epoch uint64) {
		clock.AfterFunc(delay, func() {
			poster.Post(func() { mem.CompleteStyleLoad(epoch) })
		})
	}
}

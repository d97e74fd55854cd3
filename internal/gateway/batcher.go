package gateway

import (
	"sync"
	"time"

	"github.com/davidmehren/workadventure/internal/clock"
	"github.com/davidmehren/workadventure/internal/messages"
)

// Batching defaults.
const (
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultMaxPending    = 500
)

// Batcher groups sub-messages into batch frames. The flush timer is armed
// by the first message of a window; reaching maxPending flushes at once.
type Batcher struct {
	interval   time.Duration
	maxPending int
	clock      clock.Clock
	emit       func(subs []*messages.SubMessage)

	mu      sync.Mutex
	pending []*messages.SubMessage
	timer   *clock.Timer
	window  uint64
	closed  bool

	frames int64
}

// NewBatcher creates a batcher calling emit with each frame. emit runs
// with the batcher locked and must not call back into it.
func NewBatcher(interval time.Duration, maxPending int, clk clock.Clock, emit func([]*messages.SubMessage)) *Batcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Batcher{
		interval:   interval,
		maxPending: maxPending,
		clock:      clk,
		emit:       emit,
	}
}

// Add queues sub. It is dropped once the batcher is closed.
func (b *Batcher) Add(sub *messages.SubMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.pending = append(b.pending, sub)

	if len(b.pending) >= b.maxPending {
		b.flushLocked()
		return
	}
	if b.timer == nil {
		b.window++
		window := b.window
		b.timer = b.clock.AfterFunc(b.interval, func() { b.onTimer(window) })
	}
}

// onTimer flushes the window it was armed for. A timer that lost the race
// against a size-triggered flush finds a newer window and does nothing.
func (b *Batcher) onTimer(window uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.timer == nil || window != b.window {
		return
	}
	b.timer = nil
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}
	subs := b.pending
	b.pending = nil
	b.frames++
	b.emit(subs)
}

// Close flushes pending messages and rejects further ones.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.flushLocked()
	b.closed = true
}

// Pending returns the number of queued messages.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Frames returns the number of frames emitted so far.
func (b *Batcher) Frames() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

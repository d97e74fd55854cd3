package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// AfterFunc callbacks run synchronously inside Advance, in deadline order,
// so a callback must not call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	callback func()
	ticks    chan time.Time
	interval time.Duration
	done     bool
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	w := &waiter{deadline: c.now.Add(d), callback: f}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w.done {
			return false
		}
		w.done = true
		return true
	}}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	w := &waiter{deadline: c.now.Add(d), ticks: ch, interval: d}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	return &Ticker{C: ch, stop: func() {
		c.mu.Lock()
		w.done = true
		c.mu.Unlock()
	}}
}

// Pending returns the number of timers and tickers that have not fired or
// been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.done {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, firing every waiter whose deadline is
// reached. Tickers fire once per elapsed interval; ticks that do not fit in
// the channel are dropped like time.Ticker does.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		w := c.nextDue(target)
		if w == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		c.now = w.deadline
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
			select {
			case w.ticks <- c.now:
			default:
			}
			c.mu.Unlock()
			continue
		}
		w.done = true
		callback := w.callback
		c.mu.Unlock()

		callback()
	}
}

// nextDue returns the earliest live waiter due at or before target. Must be
// called with mu held.
func (c *FakeClock) nextDue(target time.Time) *waiter {
	live := make([]*waiter, 0, len(c.waiters))
	for _, w := range c.waiters {
		if !w.done && !w.deadline.After(target) {
			live = append(live, w)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].deadline.Before(live[j].deadline)
	})
	return live[0]
}

func (c *FakeClock) compact() {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.done {
			kept = append(kept, w)
		}
	}
	c.waiters = kept
}

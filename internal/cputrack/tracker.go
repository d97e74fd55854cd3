// Package cputrack watches the CPU time consumed by the current process
// and flags it as overheated while usage stays above a threshold.
package cputrack

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidmehren/workadventure/internal/clock"
)

// Defaults for Config.
const (
	DefaultThreshold      = 80.0
	DefaultSampleInterval = 100 * time.Millisecond
)

// SampleFunc returns the cumulative CPU time of the process.
type SampleFunc func() (time.Duration, error)

// Config configures a Tracker.
type Config struct {
	// Threshold is the CPU usage in percent of one core above which the
	// process is overheated.
	Threshold float64
	Interval  time.Duration
	Clock     clock.Clock
	// Sample defaults to the process resource usage.
	Sample SampleFunc
	Logger *slog.Logger
}

// Tracker samples CPU usage on a fixed interval.
type Tracker struct {
	threshold float64
	interval  time.Duration
	clock     clock.Clock
	sample    SampleFunc
	logger    *slog.Logger

	load       atomic.Uint64
	overheated atomic.Bool

	mu      sync.Mutex
	lastAt  time.Time
	lastCPU time.Duration
	primed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSampleInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Sample == nil {
		cfg.Sample = ProcessCPUTime
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tracker{
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
		clock:     cfg.Clock,
		sample:    cfg.Sample,
		logger:    cfg.Logger,
	}
}

// Start begins sampling until ctx is done or Stop is called.
func (t *Tracker) Start(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)
	ticker := t.clock.NewTicker(t.interval)

	t.Tick()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-t.ctx.Done():
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
}

func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// Tick takes one sample.
func (t *Tracker) Tick() {
	cpu, err := t.sample()
	if err != nil {
		t.logger.Warn("cpu sample failed", "error", err)
		return
	}
	t.Observe(t.clock.Now(), cpu)
}

// Observe feeds one cumulative CPU reading taken at now.
func (t *Tracker) Observe(now time.Time, cpu time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.primed {
		t.lastAt, t.lastCPU, t.primed = now, cpu, true
		return
	}
	wall := now.Sub(t.lastAt)
	if wall <= 0 {
		return
	}
	percent := float64(cpu-t.lastCPU) / float64(wall) * 100
	t.lastAt, t.lastCPU = now, cpu
	t.load.Store(math.Float64bits(percent))

	hot := percent > t.threshold
	if t.overheated.Swap(hot) != hot {
		if hot {
			t.logger.Warn("cpu overheated, dropping moving updates", "load", percent, "threshold", t.threshold)
		} else {
			t.logger.Info("cpu back to normal", "load", percent)
		}
	}
}

// Load is the last measured usage in percent of one core.
func (t *Tracker) Load() float64 {
	return math.Float64frombits(t.load.Load())
}

func (t *Tracker) IsOverheated() bool {
	return t.overheated.Load()
}

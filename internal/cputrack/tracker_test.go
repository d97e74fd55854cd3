package cputrack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davidmehren/workadventure/internal/clock"
)

func TestTracker_Observe(t *testing.T) {
	tr := New(Config{Threshold: 80})
	start := time.Unix(0, 0)

	tests := []struct {
		name    string
		at      time.Duration
		cpu     time.Duration
		wantHot bool
		load    float64
	}{
		{"first sample primes", 0, 0, false, 0},
		{"half a core", 100 * time.Millisecond, 50 * time.Millisecond, false, 50},
		{"ninety percent", 200 * time.Millisecond, 140 * time.Millisecond, true, 90},
		{"recovers", 300 * time.Millisecond, 150 * time.Millisecond, false, 10},
	}

	for _, tt := range tests {
		tr.Observe(start.Add(tt.at), tt.cpu)
		if got := tr.IsOverheated(); got != tt.wantHot {
			t.Errorf("%s: IsOverheated() = %v, want %v", tt.name, got, tt.wantHot)
		}
		if got := tr.Load(); got < tt.load-0.01 || got > tt.load+0.01 {
			t.Errorf("%s: Load() = %v, want %v", tt.name, got, tt.load)
		}
	}
}

func TestTracker_StartSamplesOnTicker(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))

	var mu sync.Mutex
	var cpu time.Duration
	sample := func() (time.Duration, error) {
		mu.Lock()
		defer mu.Unlock()
		return cpu, nil
	}

	tr := New(Config{Clock: fake, Sample: sample, Interval: 100 * time.Millisecond})
	tr.Start(context.Background())
	defer tr.Stop()

	mu.Lock()
	cpu = 95 * time.Millisecond
	mu.Unlock()
	fake.Advance(100 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for !tr.IsOverheated() {
		if time.Now().After(deadline) {
			t.Fatal("tracker never became overheated")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProcessCPUTime(t *testing.T) {
	first, err := ProcessCPUTime()
	if err != nil {
		t.Skipf("ProcessCPUTime unsupported: %v", err)
	}
	for i := 0; i < 1_000_000; i++ {
		_ = i * i
	}
	second, err := ProcessCPUTime()
	if err != nil {
		t.Fatalf("ProcessCPUTime: %v", err)
	}
	if second < first {
		t.Errorf("cpu time went backwards: %v < %v", second, first)
	}
}

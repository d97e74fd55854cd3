package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davidmehren/workadventure/internal/clock"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (s *memStore) Insert(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Event(nil), events...))
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func event(kind Kind) Event {
	return Event{
		At:       time.Unix(1_700_000_000, 0),
		Instance: "back-1",
		RoomID:   "_/global/maps.example.com/office.json",
		UserUUID: "4d1a0f64-0000-4000-8000-000000000001",
		Name:     "alice",
		Kind:     kind,
	}
}

func TestWriterFlushesOnBatchSize(t *testing.T) {
	store := &memStore{}
	clk := clock.Fake(time.Unix(0, 0))
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 10}, store, clk, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.Record(event(KindJoin))
	w.Record(event(KindLeave))
	waitFor(t, func() bool { return store.count() == 2 })

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	stats := w.Stats()
	if stats.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", stats.Inserts)
	}
	if stats.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", stats.Flushes)
	}
}

func TestWriterFlushesOnTick(t *testing.T) {
	store := &memStore{}
	clk := clock.Fake(time.Unix(0, 0))
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Second, BufferSize: 10}, store, clk, nil)
	_ = w.Start(context.Background())
	defer w.Stop(context.Background())

	w.Record(event(KindJoin))
	waitFor(t, func() bool { return len(w.input) == 0 })

	// The consume loop may still be appending; tick until the row lands.
	waitFor(t, func() bool {
		clk.Advance(time.Second)
		return store.count() == 1
	})
}

func TestWriterStopFlushesPending(t *testing.T) {
	store := &memStore{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 10}, store, clock.Fake(time.Unix(0, 0)), nil)
	_ = w.Start(context.Background())

	for range 3 {
		w.Record(event(KindJoin))
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := store.count(); got != 3 {
		t.Errorf("stored = %d, want 3", got)
	}
}

func TestWriterDropsWhenBufferFull(t *testing.T) {
	store := &memStore{}
	// Not started, so nothing drains the buffer.
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 1}, store, clock.Fake(time.Unix(0, 0)), nil)

	w.Record(event(KindJoin))
	w.Record(event(KindJoin))
	w.Record(event(KindLeave))

	if got := w.Stats().Dropped; got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
}

func TestWriterCountsInsertErrors(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	w := NewWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour, BufferSize: 10}, store, clock.Fake(time.Unix(0, 0)), nil)
	_ = w.Start(context.Background())

	w.Record(event(KindJoin))
	waitFor(t, func() bool { return w.Stats().Errors == 1 })
	_ = w.Stop(context.Background())

	if got := w.Stats().Inserts; got != 0 {
		t.Errorf("Inserts = %d, want 0", got)
	}
}

func TestDefaultWriterConfig(t *testing.T) {
	cfg := DefaultWriterConfig()
	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
	if cfg.BufferSize != 10000 {
		t.Errorf("BufferSize = %d, want 10000", cfg.BufferSize)
	}
}

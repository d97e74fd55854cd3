package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/davidmehren/workadventure/internal/clock"
)

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
	// FinalFlushTimeout bounds the flush performed by Stop.
	FinalFlushTimeout time.Duration
}

// DefaultWriterConfig returns the settings used when none are configured.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:         500,
		FlushInterval:     time.Second,
		BufferSize:        10000,
		FinalFlushTimeout: 5 * time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
	Dropped int64
}

// Writer buffers events and writes them to a Store in batches.
type Writer struct {
	cfg    WriterConfig
	store  Store
	clock  clock.Clock
	logger *slog.Logger

	input chan Event

	batch   []Event
	batchMu sync.Mutex
	metrics WriterMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a Writer. A nil clock uses the wall clock.
func NewWriter(cfg WriterConfig, store Store, clk clock.Clock, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.FinalFlushTimeout == 0 {
		cfg.FinalFlushTimeout = DefaultWriterConfig().FinalFlushTimeout
	}
	return &Writer{
		cfg:    cfg,
		store:  store,
		clock:  clk,
		logger: logger,
		input:  make(chan Event, cfg.BufferSize),
		batch:  make([]Event, 0, cfg.BatchSize),
	}
}

// Record queues an event. It never blocks; when the buffer is full the
// event is dropped.
func (w *Writer) Record(e Event) {
	select {
	case w.input <- e:
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("audit buffer full, dropping event", "room_id", e.RoomID, "kind", e.Kind)
	}
}

// Start begins consuming events.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	ticker := w.clock.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop(ticker)

	w.logger.Info("audit writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued events, writes them and waits for the writer to exit.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping audit writer")
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("audit writer stop timed out")
		return ctx.Err()
	}

drain:
	for {
		select {
		case e := <-w.input:
			w.append(e)
		default:
			break drain
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), w.cfg.FinalFlushTimeout)
	defer cancel()
	w.flush(flushCtx)

	w.logger.Info("audit writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop(ticker *clock.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.input:
			if w.append(e) {
				w.flush(w.ctx)
			}
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// append adds e to the batch and reports whether the batch is full.
func (w *Writer) append(e Event) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, e)
	return len(w.batch) >= w.cfg.BatchSize
}

func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]Event, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	if err := w.store.Insert(ctx, batch); err != nil {
		w.logger.Error("audit batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed audit events", "count", len(batch), "duration", time.Since(start))
}

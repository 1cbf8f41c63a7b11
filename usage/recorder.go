package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tollgate/tollgate/id"
	"github.com/tollgate/tollgate/internal/entity"
)

// RecorderConfig holds recorder configuration.
type RecorderConfig struct {
	// BufferSize is the capacity of the pending-record queue.
	BufferSize int

	// Workers is the number of persistence goroutines.
	Workers int

	// DrainTimeout bounds how long Stop waits for queued records.
	DrainTimeout time.Duration
}

// Recorder persists call records off the proxy's critical path. Record never
// blocks: when the queue is full the record is dropped with a warning, which
// is preferable to adding latency to forwarding.
type Recorder struct {
	store  Store
	config RecorderConfig
	logger *slog.Logger

	mu     sync.RWMutex
	queue  chan *Record
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecorder creates a usage recorder.
func NewRecorder(store Store, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &Recorder{
		store:  store,
		config: cfg,
		logger: logger,
		queue:  make(chan *Record, cfg.BufferSize),
	}
}

// Start begins the persistence workers.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for range r.config.Workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.work(ctx)
		}()
	}
}

// Stop drains queued records and waits for in-flight writes, bounded by the
// drain timeout.
func (r *Recorder) Stop(_ context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.config.DrainTimeout):
		r.logger.Warn("usage recorder drain timed out")
	}
	if r.cancel != nil {
		r.cancel()
	}
}

// Record enqueues one call record. The ID and timestamps are assigned here
// so callers only fill in what they observed.
func (r *Recorder) Record(rec *Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	rec.Entity = entity.New()
	rec.ID = id.NewCallID()

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("usage queue full, dropping call record",
			"endpoint_id", rec.EndpointID,
			"request_path", rec.RequestPath,
		)
	}
}

func (r *Recorder) work(ctx context.Context) {
	for rec := range r.queue {
		if err := r.store.CreateCall(ctx, rec); err != nil {
			r.logger.ErrorContext(ctx, "persist call record failed",
				"call_id", rec.ID, "error", err)
		}
	}
}

package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"helpdesk-hq/beacon/pkg/engine"
)

// RecorderConfig contains configuration for the decision recorder.
type RecorderConfig struct {
	// Enabled enables audit recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes decision records to the audit store asynchronously so
// storage latency never shows up on the decision path.
type Recorder struct {
	store      *Store
	config     *RecorderConfig
	recordChan chan *engine.DecisionRecord
	wg         sync.WaitGroup
	done       chan struct{}
	dropped    atomic.Uint64
	logger     *slog.Logger
}

// NewRecorder creates a recorder backed by the given store and starts its
// background writer.
func NewRecorder(store *Store, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:      store,
		config:     config,
		recordChan: make(chan *engine.DecisionRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record enqueues a decision record for async writing. It never blocks: if
// the buffer is full the record is dropped and counted.
func (r *Recorder) Record(rec *engine.DecisionRecord) {
	if !r.config.Enabled || rec == nil {
		return
	}

	select {
	case r.recordChan <- rec:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("audit channel full, dropping record",
			"decision_id", rec.DecisionID,
			"dropped_total", n,
		)
	}
}

// Dropped returns how many records were discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close drains the channel and waits for pending writes to complete.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.writeRecord(rec)

		case <-r.done:
			// Drain remaining records before exit
			for {
				select {
				case rec := <-r.recordChan:
					r.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(rec *engine.DecisionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Error("failed to store decision record",
			"decision_id", rec.DecisionID,
			"conversation_id", rec.ConversationID,
			"error", err,
		)
	}
}

package storage

import (
	"log/slog"
	"sync"

	"depth_go/internal/domain"
)

// ResyncRecorder journals resyncs off the writer goroutines. Record never
// blocks; when the queue is full the record is dropped and logged.
type ResyncRecorder struct {
	journal domain.ResyncJournal
	queue   chan domain.ResyncRecord
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewResyncRecorder creates a recorder with a bounded queue.
func NewResyncRecorder(journal domain.ResyncJournal, size int) *ResyncRecorder {
	if size <= 0 {
		size = 256
	}
	return &ResyncRecorder{
		journal: journal,
		queue:   make(chan domain.ResyncRecord, size),
		logger:  slog.Default().With("module", "resync_journal"),
	}
}

// Record queues one record. Records arriving after Stop are dropped.
func (r *ResyncRecorder) Record(rec domain.ResyncRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("Resync journal stopped, record dropped",
			slog.String("inst_id", rec.InstrumentID),
			slog.String("reason", rec.Reason))
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("Resync journal queue full, record dropped",
			slog.String("inst_id", rec.InstrumentID),
			slog.String("reason", rec.Reason))
	}
}

// Start drains the queue in the background until Stop.
func (r *ResyncRecorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for rec := range r.queue {
			r.write(rec)
		}
	}()
}

// Stop closes the queue and waits until every queued record is written.
// Stop it after the producers (the engine writers) have exited.
func (r *ResyncRecorder) Stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *ResyncRecorder) write(rec domain.ResyncRecord) {
	if err := r.journal.RecordResync(rec); err != nil {
		r.logger.Error("Failed to journal resync", slog.Any("error", err))
	}
}

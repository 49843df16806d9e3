package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight book-sync observability.
// Uses atomic operations for thread-safety; nil receivers are no-ops so
// components can run without metrics in tests.
type Metrics struct {
	// Counters
	updatesApplied     atomic.Uint64
	snapshotsApplied   atomic.Uint64
	updatesDropped     atomic.Uint64
	updatesBuffered    atomic.Uint64
	inboxDrops         atomic.Uint64
	sequenceGaps       atomic.Uint64
	checksumMismatches atomic.Uint64
	bufferOverflows    atomic.Uint64
	replayFailures     atomic.Uint64
	snapshotRequests   atomic.Uint64
	resyncsCompleted   atomic.Uint64
	connectionLosses   atomic.Uint64
	pricingCalls       atomic.Uint64
	pricingErrors      atomic.Uint64
	errorsTotal        atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
	e2eSumNs     atomic.Int64
	e2eCount     atomic.Uint64
	e2eMaxNs     atomic.Int64

	// Gauges
	activeConnections atomic.Int32
	resyncingBooks    atomic.Int32
	subscribedBooks   atomic.Int32
}

// RecordApply records an applied incremental with its processing latency.
func (m *Metrics) RecordApply(latencyNs int64) {
	if m == nil {
		return
	}
	m.updatesApplied.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordEndToEnd records the time from receiving an update off the wire
// to publishing the view that includes it.
func (m *Metrics) RecordEndToEnd(latencyNs int64) {
	if m == nil || latencyNs < 0 {
		return
	}
	m.e2eSumNs.Add(latencyNs)
	m.e2eCount.Add(1)
	for {
		cur := m.e2eMaxNs.Load()
		if latencyNs <= cur || m.e2eMaxNs.CompareAndSwap(cur, latencyNs) {
			return
		}
	}
}

func (m *Metrics) RecordSnapshot() {
	if m != nil {
		m.snapshotsApplied.Add(1)
	}
}

func (m *Metrics) RecordDrop() {
	if m != nil {
		m.updatesDropped.Add(1)
	}
}

func (m *Metrics) RecordBuffered() {
	if m != nil {
		m.updatesBuffered.Add(1)
	}
}

// RecordInboxDrop records an update discarded because an instrument inbox was full.
func (m *Metrics) RecordInboxDrop() {
	if m != nil {
		m.inboxDrops.Add(1)
	}
}

func (m *Metrics) RecordGap() {
	if m != nil {
		m.sequenceGaps.Add(1)
	}
}

func (m *Metrics) RecordChecksumMismatch() {
	if m != nil {
		m.checksumMismatches.Add(1)
	}
}

func (m *Metrics) RecordBufferOverflow() {
	if m != nil {
		m.bufferOverflows.Add(1)
	}
}

func (m *Metrics) RecordReplayFailure() {
	if m != nil {
		m.replayFailures.Add(1)
	}
}

func (m *Metrics) RecordSnapshotRequest() {
	if m != nil {
		m.snapshotRequests.Add(1)
	}
}

func (m *Metrics) RecordConnectionLoss() {
	if m != nil {
		m.connectionLosses.Add(1)
	}
}

// RecordPricing records a pricing call and whether it failed.
func (m *Metrics) RecordPricing(failed bool) {
	if m == nil {
		return
	}
	m.pricingCalls.Add(1)
	if failed {
		m.pricingErrors.Add(1)
	}
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	if m != nil {
		m.errorsTotal.Add(1)
	}
}

// EnterResync marks one more book as resyncing.
func (m *Metrics) EnterResync() {
	if m != nil {
		m.resyncingBooks.Add(1)
	}
}

// LeaveResync marks a book as synced again.
func (m *Metrics) LeaveResync() {
	if m == nil {
		return
	}
	m.resyncingBooks.Add(-1)
	m.resyncsCompleted.Add(1)
}

// AbandonResync removes a resyncing book without counting a completion (unsubscribe).
func (m *Metrics) AbandonResync() {
	if m != nil {
		m.resyncingBooks.Add(-1)
	}
}

// SetSubscribedBooks sets the number of mirrored instruments.
func (m *Metrics) SetSubscribedBooks(n int32) {
	if m != nil {
		m.subscribedBooks.Store(n)
	}
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	if m != nil {
		m.activeConnections.Add(1)
	}
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	if m != nil {
		m.activeConnections.Add(-1)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	UpdatesApplied     uint64
	SnapshotsApplied   uint64
	UpdatesDropped     uint64
	UpdatesBuffered    uint64
	InboxDrops         uint64
	SequenceGaps       uint64
	ChecksumMismatches uint64
	BufferOverflows    uint64
	ReplayFailures     uint64
	SnapshotRequests   uint64
	ResyncsCompleted   uint64
	ConnectionLosses   uint64
	PricingCalls       uint64
	PricingErrors      uint64
	ErrorsTotal        uint64
	AvgApplyLatencyNs  int64
	AvgEndToEndNs      int64
	MaxEndToEndNs      int64
	ActiveConnections  int32
	ResyncingBooks     int32
	SubscribedBooks    int32
	Timestamp          time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}
	var avgE2E int64
	if n := m.e2eCount.Load(); n > 0 {
		avgE2E = m.e2eSumNs.Load() / int64(n)
	}

	return MetricsSnapshot{
		UpdatesApplied:     m.updatesApplied.Load(),
		SnapshotsApplied:   m.snapshotsApplied.Load(),
		UpdatesDropped:     m.updatesDropped.Load(),
		UpdatesBuffered:    m.updatesBuffered.Load(),
		InboxDrops:         m.inboxDrops.Load(),
		SequenceGaps:       m.sequenceGaps.Load(),
		ChecksumMismatches: m.checksumMismatches.Load(),
		BufferOverflows:    m.bufferOverflows.Load(),
		ReplayFailures:     m.replayFailures.Load(),
		SnapshotRequests:   m.snapshotRequests.Load(),
		ResyncsCompleted:   m.resyncsCompleted.Load(),
		ConnectionLosses:   m.connectionLosses.Load(),
		PricingCalls:       m.pricingCalls.Load(),
		PricingErrors:      m.pricingErrors.Load(),
		ErrorsTotal:        m.errorsTotal.Load(),
		AvgApplyLatencyNs:  avgLatency,
		AvgEndToEndNs:      avgE2E,
		MaxEndToEndNs:      m.e2eMaxNs.Load(),
		ActiveConnections:  m.activeConnections.Load(),
		ResyncingBooks:     m.resyncingBooks.Load(),
		SubscribedBooks:    m.subscribedBooks.Load(),
		Timestamp:          time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.updatesApplied, &m.snapshotsApplied, &m.updatesDropped, &m.updatesBuffered,
		&m.inboxDrops, &m.sequenceGaps, &m.checksumMismatches, &m.bufferOverflows,
		&m.replayFailures, &m.snapshotRequests, &m.resyncsCompleted, &m.connectionLosses,
		&m.pricingCalls, &m.pricingErrors, &m.errorsTotal, &m.latencyCount,
		&m.e2eCount,
	} {
		c.Store(0)
	}
	m.latencySumNs.Store(0)
	m.e2eSumNs.Store(0)
	m.e2eMaxNs.Store(0)
	m.activeConnections.Store(0)
	m.resyncingBooks.Store(0)
	m.subscribedBooks.Store(0)
}

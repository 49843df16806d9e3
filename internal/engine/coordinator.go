package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"depth_go/internal/book"
	"depth_go/internal/domain"
	"depth_go/internal/infra"
)

// Result reports what the coordinator did with one update.
type Result int

const (
	ResultApplied Result = iota + 1
	ResultSnapshotApplied
	ResultDropped
	ResultBuffered
	ResultGap
	ResultChecksumMismatch
	ResultBufferOverflow
	ResultResynced
	ResultReplayFailed
)

// String returns the string representation of Result
func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultSnapshotApplied:
		return "snapshot_applied"
	case ResultDropped:
		return "dropped"
	case ResultBuffered:
		return "buffered"
	case ResultGap:
		return "gap"
	case ResultChecksumMismatch:
		return "checksum_mismatch"
	case ResultBufferOverflow:
		return "buffer_overflow"
	case ResultResynced:
		return "resynced"
	case ResultReplayFailed:
		return "replay_failed"
	default:
		return "unknown"
	}
}

// Resync reasons, as journaled.
const (
	ReasonGap            = "gap"
	ReasonChecksum       = "checksum"
	ReasonConnectionLost = "connection_lost"
	ReasonBufferOverflow = "buffer_overflow"
	ReasonReplayFailed   = "replay_failed"
)

const DefaultBufferLimit = 1024

// SnapshotRequester asks the exchange for a fresh snapshot of one
// instrument. It is called from the writer goroutine and must not block.
type SnapshotRequester interface {
	RequestSnapshot(ctx context.Context, instrumentID string) error
}

// SnapshotRequesterFunc adapts a function to SnapshotRequester.
type SnapshotRequesterFunc func(ctx context.Context, instrumentID string) error

func (f SnapshotRequesterFunc) RequestSnapshot(ctx context.Context, instrumentID string) error {
	return f(ctx, instrumentID)
}

// CoordinatorConfig configures one Coordinator.
type CoordinatorConfig struct {
	BufferLimit   int
	ChecksumDepth int
	Requester     SnapshotRequester
	Metrics       *infra.Metrics
	Logger        *slog.Logger
	// OnPublish receives every newly published view.
	OnPublish func(*book.View)
	// OnResync receives one record per resync trigger.
	OnResync func(domain.ResyncRecord)
}

// Coordinator owns one instrument's ladder and drives it through
// Uninitialized, Synced and Resyncing.
//
// While not Synced, incrementals are held in a bounded pending buffer.
// A snapshot is applied unconditionally, buffered updates it already
// covers are discarded and the rest are replayed in sequence order.
// Any failure during replay discards the whole buffer and asks for
// another snapshot.
type Coordinator struct {
	cfg     CoordinatorConfig
	ladder  *book.Ladder
	pending []*domain.BookUpdate
	logger  *slog.Logger
	now     func() time.Time

	// resyncing stays set from the first trigger until a clean snapshot,
	// across failed snapshot attempts.
	resyncing bool

	mu sync.Mutex
}

// NewCoordinator creates a coordinator with an uninitialized ladder.
func NewCoordinator(instrumentID string, cfg CoordinatorConfig) *Coordinator {
	if cfg.BufferLimit <= 0 {
		cfg.BufferLimit = DefaultBufferLimit
	}
	if cfg.ChecksumDepth <= 0 {
		cfg.ChecksumDepth = book.DefaultChecksumDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:    cfg,
		ladder: book.NewLadder(instrumentID),
		logger: logger.With(slog.String("module", "coordinator"), slog.String("inst_id", instrumentID)),
		now:    time.Now,
	}
}

// InstrumentID returns the instrument this coordinator mirrors.
func (c *Coordinator) InstrumentID() string { return c.ladder.InstrumentID() }

// State returns the current synchronization state.
func (c *Coordinator) State() domain.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ladder.State()
}

// Pending returns the number of buffered updates.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Apply processes one update for this instrument.
func (c *Coordinator) Apply(ctx context.Context, u *domain.BookUpdate) (Result, error) {
	if u == nil {
		return 0, fmt.Errorf("%w: nil update", domain.ErrInvalidInstrument)
	}
	if u.InstrumentID != c.ladder.InstrumentID() {
		return 0, fmt.Errorf("%w: update for %q sent to %q", domain.ErrInvalidInstrument, u.InstrumentID, c.ladder.InstrumentID())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if u.IsSnapshot() {
		return c.applySnapshot(ctx, u), nil
	}

	if c.ladder.State() != domain.SyncSynced {
		return c.bufferUpdate(ctx, u), nil
	}

	start := c.now()
	last := c.ladder.LastSequenceID()
	switch Validate(last, u) {
	case Drop:
		c.logger.Debug("Stale update dropped", slog.Int64("seq_id", u.SequenceID), slog.Int64("last_seq_id", last))
		c.cfg.Metrics.RecordDrop()
		return ResultDropped, nil
	case Gap:
		c.cfg.Metrics.RecordGap()
		c.logger.Warn("Sequence gap detected",
			slog.Int64("last_seq_id", last),
			slog.Int64("seq_id", u.SequenceID),
			slog.Any("prev_seq_id", u.PrevSequenceID))
		c.startResync(ctx, ReasonGap, fmt.Sprintf("last=%d seq=%d", last, u.SequenceID))
		// The gap message is newer than anything applied; the snapshot may not cover it.
		c.pending = append(c.pending, u)
		c.cfg.Metrics.RecordBuffered()
		return ResultGap, nil
	}

	c.ladder.ApplyIncremental(u)
	if !c.verify(u) {
		c.startResync(ctx, ReasonChecksum, fmt.Sprintf("seq=%d", u.SequenceID))
		return ResultChecksumMismatch, nil
	}

	c.publish()
	now := c.now()
	c.cfg.Metrics.RecordApply(now.Sub(start).Nanoseconds())
	if u.ReceivedUnixM > 0 {
		c.cfg.Metrics.RecordEndToEnd((now.UnixMicro() - u.ReceivedUnixM) * int64(time.Microsecond))
	}
	return ResultApplied, nil
}

// ConnectionLost treats a broken or resumed stream like a gap: nothing
// received before it can be trusted to connect with what comes after.
func (c *Coordinator) ConnectionLost(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Metrics.RecordConnectionLoss()
	c.logger.Warn("Connection signal, resyncing book", slog.Int64("last_seq_id", c.ladder.LastSequenceID()))
	c.startResync(ctx, ReasonConnectionLost, "")
}

func (c *Coordinator) applySnapshot(ctx context.Context, snap *domain.BookUpdate) Result {
	c.ladder.ApplySnapshot(snap)
	c.cfg.Metrics.RecordSnapshot()

	if !c.verify(snap) {
		c.pending = nil
		c.startResync(ctx, ReasonChecksum, fmt.Sprintf("snapshot seq=%d", snap.SequenceID))
		return ResultChecksumMismatch
	}

	pending := c.pending
	c.pending = nil
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SequenceID < pending[j].SequenceID
	})

	replayed := 0
	for _, u := range pending {
		if u.SequenceID <= snap.SequenceID {
			continue
		}
		last := c.ladder.LastSequenceID()
		switch Validate(last, u) {
		case Drop:
			continue
		case Gap:
			return c.replayFailed(ctx, fmt.Sprintf("gap in buffer: last=%d seq=%d", last, u.SequenceID))
		}
		c.ladder.ApplyIncremental(u)
		if !c.verify(u) {
			return c.replayFailed(ctx, fmt.Sprintf("checksum in buffer: seq=%d", u.SequenceID))
		}
		replayed++
	}

	c.publish()

	if c.resyncing {
		c.resyncing = false
		c.cfg.Metrics.LeaveResync()
		c.logger.Info("Book resynced",
			slog.Int64("snapshot_seq_id", snap.SequenceID),
			slog.Int("replayed", replayed),
			slog.Int64("last_seq_id", c.ladder.LastSequenceID()))
		return ResultResynced
	}

	c.logger.Info("Snapshot applied",
		slog.Int64("seq_id", snap.SequenceID),
		slog.Int("replayed", replayed))
	return ResultSnapshotApplied
}

func (c *Coordinator) replayFailed(ctx context.Context, detail string) Result {
	c.cfg.Metrics.RecordReplayFailure()
	c.logger.Warn("Replay after snapshot failed", slog.String("detail", detail))
	c.startResync(ctx, ReasonReplayFailed, detail)
	return ResultReplayFailed
}

// bufferUpdate holds an incremental until the next snapshot.
// The caller holds c.mu.
func (c *Coordinator) bufferUpdate(ctx context.Context, u *domain.BookUpdate) Result {
	if len(c.pending) >= c.cfg.BufferLimit {
		c.cfg.Metrics.RecordBufferOverflow()
		c.logger.Warn("Resync buffer overflow, discarding", slog.Int("limit", c.cfg.BufferLimit))
		c.startResync(ctx, ReasonBufferOverflow, fmt.Sprintf("limit=%d", c.cfg.BufferLimit))
		return ResultBufferOverflow
	}
	c.pending = append(c.pending, u)
	c.cfg.Metrics.RecordBuffered()
	return ResultBuffered
}

// verify checks the message checksum, if any, against the ladder.
func (c *Coordinator) verify(u *domain.BookUpdate) bool {
	if u.Checksum == nil {
		return true
	}
	computed := c.ladder.Checksum(c.cfg.ChecksumDepth)
	if book.MatchChecksum(computed, *u.Checksum) {
		return true
	}
	c.cfg.Metrics.RecordChecksumMismatch()
	c.logger.Error("Checksum mismatch",
		slog.Int64("seq_id", u.SequenceID),
		slog.Int64("expected", *u.Checksum),
		slog.Int64("computed", int64(computed)))
	return false
}

// startResync moves the ladder to Resyncing, empties the buffer,
// publishes the unusable view and asks for a snapshot.
// The caller holds c.mu.
func (c *Coordinator) startResync(ctx context.Context, reason, detail string) {
	if !c.resyncing {
		c.resyncing = true
		c.cfg.Metrics.EnterResync()
	}
	c.ladder.MarkResyncing()
	c.pending = nil
	c.publish()

	c.cfg.Metrics.RecordSnapshotRequest()
	if c.cfg.Requester != nil {
		if err := c.cfg.Requester.RequestSnapshot(ctx, c.ladder.InstrumentID()); err != nil {
			c.cfg.Metrics.RecordError()
			c.logger.Error("Snapshot request failed", slog.String("reason", reason), slog.Any("error", err))
		}
	}

	if c.cfg.OnResync != nil {
		c.cfg.OnResync(domain.ResyncRecord{
			InstrumentID: c.ladder.InstrumentID(),
			Reason:       reason,
			SequenceID:   c.ladder.LastSequenceID(),
			Detail:       detail,
			CreatedAt:    c.now(),
		})
	}
}

func (c *Coordinator) publish() {
	if c.cfg.OnPublish != nil {
		c.cfg.OnPublish(c.ladder.View(c.now().UnixMicro()))
	}
}

// abandon releases the resync gauge when the instrument is dropped mid-resync.
func (c *Coordinator) abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resyncing {
		c.resyncing = false
		c.cfg.Metrics.AbandonResync()
	}
	c.pending = nil
	c.ladder.Reset()
}

// BookDump is the post-mortem picture of one instrument.
type BookDump struct {
	InstrumentID string              `json:"inst_id"`
	State        string              `json:"state"`
	LastSeqID    int64               `json:"last_seq_id"`
	Checksum     int32               `json:"checksum"`
	Pending      []int64             `json:"pending_seq_ids"`
	Bids         []domain.PriceLevel `json:"bids"`
	Asks         []domain.PriceLevel `json:"asks"`
}

func (c *Coordinator) dump() BookDump {
	c.mu.Lock()
	defer c.mu.Unlock()

	bids, asks := c.ladder.Levels()
	d := BookDump{
		InstrumentID: c.ladder.InstrumentID(),
		State:        c.ladder.State().String(),
		LastSeqID:    c.ladder.LastSequenceID(),
		Checksum:     c.ladder.Checksum(c.cfg.ChecksumDepth),
		Pending:      make([]int64, 0, len(c.pending)),
		Bids:         bids,
		Asks:         asks,
	}
	for _, u := range c.pending {
		d.Pending = append(d.Pending, u.SequenceID)
	}
	return d
}

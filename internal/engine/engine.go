// Package engine keeps a local mirror of exchange order books in sync and
// prices fill-or-kill orders against it.
//
// Each subscribed instrument has its own coordinator and writer goroutine.
// Updates for an instrument are applied in arrival order; instruments are
// independent. Readers never wait for writers: every applied update is
// published as an immutable view behind an atomic pointer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"depth_go/internal/book"
	"depth_go/internal/domain"
	"depth_go/internal/event"
	"depth_go/internal/infra"
	"depth_go/internal/pricing"

	"github.com/shopspring/decimal"
)

const (
	DefaultInboxSize = 4096
	DefaultDumpFile  = "panic_dump.json"
)

// ErrStopped is returned when dispatching to an engine that has shut down.
var ErrStopped = errors.New("engine stopped")

// Options configures an Engine. Zero values select defaults.
type Options struct {
	BufferLimit   int
	ChecksumDepth int
	InboxSize     int
	DumpFile      string

	Requester SnapshotRequester
	Metrics   *infra.Metrics
	Logger    *slog.Logger

	// OnPublish is called from writer goroutines after each publish.
	OnPublish func(*book.View)
	// OnResync is called from writer goroutines for each resync trigger.
	OnResync func(domain.ResyncRecord)
	// OnUnsubscribe is called after an instrument's state is destroyed.
	OnUnsubscribe func(instrumentID string)
}

type bookWorker struct {
	coord  *Coordinator
	inbox  chan event.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the entry point: it owns the registry and one writer per instrument.
type Engine struct {
	opts     Options
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	books   map[string]*bookWorker
	ctx     context.Context // set by Start
	stopped bool
	quit    chan struct{} // closed by Stop
	wg      sync.WaitGroup
}

// New creates an engine. Call Start to run writer goroutines.
func New(opts Options) *Engine {
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.DumpFile == "" {
		opts.DumpFile = DefaultDumpFile
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		opts:     opts,
		registry: NewRegistry(),
		logger:   opts.Logger.With(slog.String("module", "engine")),
		books:    make(map[string]*bookWorker),
		quit:     make(chan struct{}),
	}
}

// Registry exposes the published views and price limits.
func (e *Engine) Registry() *Registry { return e.registry }

// Start launches writers for every subscribed instrument; later
// subscriptions start immediately. Cancelling ctx stops all writers.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil || e.stopped {
		return
	}
	e.ctx = ctx
	for _, w := range e.books {
		e.launch(w)
	}
	e.logger.Info("Engine started", slog.Int("instruments", len(e.books)))
}

// Stop cancels every writer and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.quit)
	}
	for _, w := range e.books {
		if w.cancel != nil {
			w.cancel()
		}
	}
	e.mu.Unlock()
	e.wg.Wait()
	e.logger.Info("Engine stopped")
}

// Subscribe creates the ladder, coordinator and writer for an instrument.
// The first snapshot arrives through the normal update path.
func (e *Engine) Subscribe(instrumentID string) error {
	if instrumentID == "" {
		return fmt.Errorf("%w: empty instrument id", domain.ErrInvalidInstrument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if _, ok := e.books[instrumentID]; ok {
		return nil
	}

	e.registry.Add(instrumentID)
	w := &bookWorker{
		coord: NewCoordinator(instrumentID, CoordinatorConfig{
			BufferLimit:   e.opts.BufferLimit,
			ChecksumDepth: e.opts.ChecksumDepth,
			Requester:     e.opts.Requester,
			Metrics:       e.opts.Metrics,
			Logger:        e.opts.Logger,
			OnPublish:     e.publish,
			OnResync:      e.opts.OnResync,
		}),
		inbox: make(chan event.Event, e.opts.InboxSize),
		done:  make(chan struct{}),
	}
	e.books[instrumentID] = w
	e.opts.Metrics.SetSubscribedBooks(int32(len(e.books)))

	if e.ctx != nil {
		e.launch(w)
	}
	e.logger.Info("Subscribed", slog.String("inst_id", instrumentID))
	return nil
}

// Unsubscribe stops the writer and destroys all state for the instrument.
func (e *Engine) Unsubscribe(instrumentID string) error {
	e.mu.Lock()
	w, ok := e.books[instrumentID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s not subscribed", domain.ErrInvalidInstrument, instrumentID)
	}
	delete(e.books, instrumentID)
	e.opts.Metrics.SetSubscribedBooks(int32(len(e.books)))
	e.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		<-w.done
	} else {
		// never launched; release callers blocked in Dispatch
		close(w.done)
	}
	w.coord.abandon()
	e.registry.Remove(instrumentID)
	if e.opts.OnUnsubscribe != nil {
		e.opts.OnUnsubscribe(instrumentID)
	}
	e.logger.Info("Unsubscribed", slog.String("inst_id", instrumentID))
	return nil
}

// Instruments returns the subscribed instruments, sorted.
func (e *Engine) Instruments() []string { return e.registry.Instruments() }

// launch starts a writer goroutine. The caller holds e.mu.
func (e *Engine) launch(w *bookWorker) {
	ctx, cancel := context.WithCancel(e.ctx)
	w.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, w)
	}()
}

// run is the single writer loop for one instrument.
func (e *Engine) run(ctx context.Context, w *bookWorker) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("CRITICAL_PANIC_DETECTED",
				slog.String("inst_id", w.coord.InstrumentID()),
				slog.Any("panic", r))
			if err := e.DumpState(e.opts.DumpFile); err != nil {
				e.logger.Error("Failed to dump state", slog.Any("error", err))
			}
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.inbox:
			e.process(ctx, w, ev)
		}
	}
}

func (e *Engine) process(ctx context.Context, w *bookWorker, ev event.Event) {
	switch ev := ev.(type) {
	case *event.BookUpdateEvent:
		u := ev.Update
		event.ReleaseBookUpdateEvent(ev)
		if _, err := w.coord.Apply(ctx, u); err != nil {
			e.opts.Metrics.RecordError()
			e.logger.Error("Update rejected", slog.Any("error", err))
		}
	case *event.ConnectionEvent:
		w.coord.ConnectionLost(ctx)
	case *event.PriceLimitEvent:
		e.registry.SetPriceLimit(ev.Limit)
	default:
		e.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// Dispatch routes an event to its instrument's writer. Book updates never
// block the caller: when the inbox is full the update is dropped and the
// resulting sequence gap triggers a resync. Other events wait for room
// until the instrument is unsubscribed or the engine stops.
// Dispatch takes ownership of book update events.
func (e *Engine) Dispatch(ev event.Event) error {
	e.mu.Lock()
	w, ok := e.books[ev.GetInstrumentID()]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s not subscribed", domain.ErrInvalidInstrument, ev.GetInstrumentID())
	}

	if ev.GetType() == event.TypeBookUpdate {
		select {
		case w.inbox <- ev:
		default:
			e.opts.Metrics.RecordInboxDrop()
			e.logger.Warn("Inbox full, update dropped", slog.String("inst_id", ev.GetInstrumentID()))
			if bev, ok := ev.(*event.BookUpdateEvent); ok {
				event.ReleaseBookUpdateEvent(bev)
			}
		}
		return nil
	}

	select {
	case w.inbox <- ev:
		return nil
	case <-w.done:
		return ErrStopped
	case <-e.quit:
		return ErrStopped
	}
}

// ConnectionLost signals that the stream for an instrument broke or was
// re-established.
func (e *Engine) ConnectionLost(instrumentID string) error {
	return e.Dispatch(&event.ConnectionEvent{InstrumentID: instrumentID, Status: event.ConnectionLost})
}

// ApplyUpdate processes one update synchronously on the caller's goroutine.
// It must not be mixed with Dispatch for the same instrument, since that
// would break arrival order.
func (e *Engine) ApplyUpdate(ctx context.Context, u *domain.BookUpdate) (Result, error) {
	if u == nil {
		return 0, fmt.Errorf("%w: nil update", domain.ErrInvalidInstrument)
	}
	e.mu.Lock()
	w, ok := e.books[u.InstrumentID]
	e.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s not subscribed", domain.ErrInvalidInstrument, u.InstrumentID)
	}
	return w.coord.Apply(ctx, u)
}

// UpdatePriceLimit stores a price limit directly, bypassing the inbox.
func (e *Engine) UpdatePriceLimit(l domain.PriceLimit) bool {
	return e.registry.SetPriceLimit(l)
}

// View returns the latest published view of an instrument.
func (e *Engine) View(instrumentID string) (*book.View, bool) {
	return e.registry.View(instrumentID)
}

// Quote returns best bid and ask of the latest published view.
func (e *Engine) Quote(instrumentID string) (domain.Quote, bool) {
	v, ok := e.registry.View(instrumentID)
	if !ok || v == nil {
		return domain.Quote{}, false
	}
	return v.Quote(), true
}

// CalculateFokPrice prices a fill-or-kill buy of quantity on an instrument.
func (e *Engine) CalculateFokPrice(instrumentID string, quantity decimal.Decimal) (decimal.Decimal, error) {
	return e.CalculateFokPriceSide(instrumentID, domain.SideBuy, quantity)
}

// CalculateFokPriceSide prices a fill-or-kill order on either side.
func (e *Engine) CalculateFokPriceSide(instrumentID string, side domain.Side, quantity decimal.Decimal) (decimal.Decimal, error) {
	view, ok := e.registry.View(instrumentID)
	if !ok {
		e.opts.Metrics.RecordPricing(true)
		return decimal.Zero, fmt.Errorf("%w: %s not subscribed", domain.ErrInvalidInstrument, instrumentID)
	}
	price, err := pricing.CalculateFokLimitPriceSide(view, side, quantity, e.registry.PriceLimit(instrumentID))
	e.opts.Metrics.RecordPricing(err != nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", instrumentID, err)
	}
	return price, nil
}

func (e *Engine) publish(v *book.View) {
	e.registry.Publish(v)
	if e.opts.OnPublish != nil {
		e.opts.OnPublish(v)
	}
}

// DumpState writes every instrument's book and sync state to a file (for post-mortem).
func (e *Engine) DumpState(filename string) error {
	e.logger.Info("Dumping internal state...", slog.String("file", filename))

	e.mu.Lock()
	workers := make([]*bookWorker, 0, len(e.books))
	for _, w := range e.books {
		workers = append(workers, w)
	}
	e.mu.Unlock()

	data := struct {
		Books map[string]BookDump `json:"books"`
	}{
		Books: make(map[string]BookDump, len(workers)),
	}
	for _, w := range workers {
		data.Books[w.coord.InstrumentID()] = w.coord.dump()
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("write state dump: %w", err)
	}
	return nil
}

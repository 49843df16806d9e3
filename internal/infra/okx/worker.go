package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"depth_go/internal/domain"
	"depth_go/internal/event"
	"depth_go/internal/infra"

	"github.com/gorilla/websocket"
)

// Dispatcher receives decoded events. The engine implements it.
type Dispatcher interface {
	Dispatch(ev event.Event) error
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	URL          string
	BooksChannel string
	Instruments  []string
	// OnPriceLimit handles streamed limits. When nil they are dispatched
	// as PriceLimitEvents.
	OnPriceLimit func(domain.PriceLimit)
}

var _ domain.ExchangeWorker = (*Worker)(nil)

// Worker streams order books and price limits from the OKX public websocket.
type Worker struct {
	cfg     WorkerConfig
	sink    Dispatcher
	metrics *infra.Metrics
	logger  *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	resubscribe chan string
}

// NewWorker factory
func NewWorker(cfg WorkerConfig, sink Dispatcher, metrics *infra.Metrics, logger *slog.Logger) *Worker {
	if cfg.URL == "" {
		cfg.URL = PublicWSURL
	}
	if cfg.BooksChannel == "" {
		cfg.BooksChannel = channelBooks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:         cfg,
		sink:        sink,
		metrics:     metrics,
		logger:      logger.With(slog.String("module", "okx_worker")),
		resubscribe: make(chan string, 256),
	}
}

func (w *Worker) Connect(ctx context.Context) error {
	if len(w.cfg.Instruments) == 0 {
		return fmt.Errorf("%w: no instruments to subscribe", domain.ErrInvalidInstrument)
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.logger.Warn("OKX connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0 // Infinite retry loop for monitoring
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(infra.CalculateBackoff(retryCount)):
			}
			continue
		}

		retryCount = 0
		connCtx, stop := context.WithCancel(ctx)
		go w.pingLoop(connCtx)
		go w.resubscribeLoop(connCtx)
		w.readLoop(ctx)
		stop()
		if ctx.Err() == nil {
			w.signalConnectionLost()
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		return domain.NewNetworkError("dial", fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err))
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	w.metrics.IncrementConnections()

	if err := w.subscribe("subscribe", w.cfg.Instruments...); err != nil {
		w.closeConnection()
		return err
	}

	w.logger.Info("OKX Connected", slog.Int("instruments", len(w.cfg.Instruments)))
	return nil
}

func (w *Worker) subscribe(op string, instruments ...string) error {
	args := make([]wsArg, 0, 2*len(instruments))
	for _, id := range instruments {
		args = append(args, wsArg{Channel: w.cfg.BooksChannel, InstID: id})
		if op == "subscribe" {
			args = append(args, wsArg{Channel: channelPriceLimit, InstID: id})
		}
	}
	b, err := json.Marshal(wsRequest{Op: op, Args: args})
	if err != nil {
		w.logger.Error("Failed to marshal subscribe request", slog.Any("error", err))
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

// RequestSnapshot makes the exchange push a fresh books snapshot by
// resubscribing the instrument. It never blocks: the request is queued
// for the connection's writer. While disconnected it is a no-op, since
// the reconnect subscription delivers snapshots anyway.
func (w *Worker) RequestSnapshot(_ context.Context, instrumentID string) error {
	if !w.IsConnected() {
		w.logger.Debug("Snapshot request while disconnected", slog.String("inst_id", instrumentID))
		return nil
	}
	select {
	case w.resubscribe <- instrumentID:
		return nil
	default:
		return fmt.Errorf("snapshot request queue full: %s", instrumentID)
	}
}

func (w *Worker) resubscribeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-w.resubscribe:
			books := wsRequest{Args: []wsArg{{Channel: w.cfg.BooksChannel, InstID: id}}}
			for _, op := range []string{"unsubscribe", "subscribe"} {
				books.Op = op
				b, _ := json.Marshal(books)
				if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
					w.logger.Warn("Resubscribe failed", slog.String("inst_id", id), slog.Any("error", err))
					break
				}
			}
			w.logger.Info("Snapshot requested", slog.String("inst_id", id))
		}
	}
}

func (w *Worker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.threadSafeWrite(websocket.TextMessage, []byte("ping"))
		}
	}
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return errors.New("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("OKX read failed", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}
		if string(msg) == "pong" {
			continue
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		w.logger.Warn("Undecodable frame", slog.Any("error", err))
		return
	}

	if m.Event != "" {
		if m.Event == "error" {
			w.metrics.RecordError()
			w.logger.Error("OKX error event", slog.String("code", m.Code), slog.String("msg", m.Msg))
		} else {
			w.logger.Debug("OKX event", slog.String("event", m.Event), slog.String("channel", m.Arg.Channel), slog.String("inst_id", m.Arg.InstID))
		}
		return
	}

	switch m.Arg.Channel {
	case w.cfg.BooksChannel:
		w.handleBooks(m)
	case channelPriceLimit:
		w.handlePriceLimit(m)
	}
}

func (w *Worker) handleBooks(m wsMessage) {
	var data []bookData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		w.logger.Warn("Bad books payload", slog.String("inst_id", m.Arg.InstID), slog.Any("error", err))
		return
	}

	now := time.Now().UnixMicro()
	for _, d := range data {
		u, err := decodeBookUpdate(m.Arg.InstID, m.Action, d, now)
		if err != nil {
			// Skipping leaves a sequence gap, which resyncs the book.
			w.metrics.RecordError()
			w.logger.Warn("Bad books entry", slog.String("inst_id", m.Arg.InstID), slog.Any("error", err))
			continue
		}

		ev := event.AcquireBookUpdateEvent()
		ev.Update = u
		if err := w.sink.Dispatch(ev); err != nil {
			event.ReleaseBookUpdateEvent(ev)
			w.logger.Warn("Dispatch failed", slog.String("inst_id", u.InstrumentID), slog.Any("error", err))
		}
	}
}

func (w *Worker) handlePriceLimit(m wsMessage) {
	var data []priceLimitData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		w.logger.Warn("Bad price-limit payload", slog.Any("error", err))
		return
	}
	for _, d := range data {
		limit, err := decodePriceLimit(d)
		if err != nil {
			w.logger.Warn("Bad price-limit entry", slog.String("inst_id", d.InstID), slog.Any("error", err))
			continue
		}
		if w.cfg.OnPriceLimit != nil {
			w.cfg.OnPriceLimit(limit)
			continue
		}
		if err := w.sink.Dispatch(&event.PriceLimitEvent{Limit: limit}); err != nil {
			w.logger.Warn("Dispatch failed", slog.String("inst_id", limit.InstrumentID), slog.Any("error", err))
		}
	}
}

// signalConnectionLost tells every book that its stream was interrupted.
func (w *Worker) signalConnectionLost() {
	for _, id := range w.cfg.Instruments {
		if err := w.sink.Dispatch(&event.ConnectionEvent{InstrumentID: id, Status: event.ConnectionLost}); err != nil {
			w.logger.Debug("Connection signal not delivered", slog.String("inst_id", id), slog.Any("error", err))
		}
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		w.metrics.DecrementConnections()
	}
	w.connected = false
}

func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

package okx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"depth_go/internal/domain"
	"depth_go/internal/infra"
)

// refreshAttempts bounds the tries per instrument when the REST call fails
// with a retriable error.
const refreshAttempts = 3

// LimitSink receives price limits for pricing. The engine implements it.
type LimitSink interface {
	UpdatePriceLimit(l domain.PriceLimit) bool
}

// LimitStore persists the last known limit per instrument.
type LimitStore interface {
	SavePriceLimit(ctx context.Context, l domain.PriceLimit) error
}

// PriceLimitSynchronizer keeps the engine's price limits current: a REST
// seed at start, a periodic REST refresh, and stream updates in between.
type PriceLimitSynchronizer struct {
	source      domain.PriceLimitSource
	sink        LimitSink
	store       LimitStore
	instruments []string
	interval    time.Duration
	backoff     func(retryCount int) time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	last map[string]domain.PriceLimit
}

// NewPriceLimitSynchronizer creates a synchronizer. store may be nil.
// A non-positive interval disables the periodic refresh.
func NewPriceLimitSynchronizer(source domain.PriceLimitSource, sink LimitSink, store LimitStore, instruments []string, interval time.Duration) *PriceLimitSynchronizer {
	return &PriceLimitSynchronizer{
		source:      source,
		sink:        sink,
		store:       store,
		instruments: instruments,
		interval:    interval,
		backoff:     infra.CalculateBackoff,
		logger:      slog.Default().With("module", "price_limit_sync"),
		last:        make(map[string]domain.PriceLimit),
	}
}

// Refresh fetches every instrument's limit once. Retriable failures are
// retried with backoff; failures for one instrument do not stop the others
// and are joined into the result.
func (s *PriceLimitSynchronizer) Refresh(ctx context.Context) error {
	var errs []error
	for _, id := range s.instruments {
		limit, err := s.fetch(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		s.Apply(limit)
	}
	return errors.Join(errs...)
}

func (s *PriceLimitSynchronizer) fetch(ctx context.Context, id string) (domain.PriceLimit, error) {
	for attempt := 0; ; attempt++ {
		limit, err := s.source.GetPriceLimit(ctx, id)
		if err == nil || !domain.IsRetriable(err) || attempt+1 >= refreshAttempts {
			return limit, err
		}

		delay := s.backoff(attempt)
		s.logger.Warn("Price limit fetch failed, retrying",
			slog.String("inst_id", id),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return domain.PriceLimit{}, err
		case <-time.After(delay):
		}
	}
}

// Run seeds limits and refreshes them until ctx is cancelled.
func (s *PriceLimitSynchronizer) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Price limit seed incomplete", slog.Any("error", err))
	}
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("Price limit refresh failed", slog.Any("error", err))
			}
		}
	}
}

// Apply hands one limit to the engine and the store. Limits older than
// the one already applied are ignored.
func (s *PriceLimitSynchronizer) Apply(l domain.PriceLimit) {
	s.mu.Lock()
	prev, seen := s.last[l.InstrumentID]
	if seen && l.AsOf.Before(prev.AsOf) {
		s.mu.Unlock()
		return
	}
	s.last[l.InstrumentID] = l
	s.mu.Unlock()

	if !s.sink.UpdatePriceLimit(l) {
		s.logger.Debug("Price limit for unsubscribed instrument", slog.String("inst_id", l.InstrumentID))
		return
	}
	if seen && prev.Enabled == l.Enabled && prev.BuyLimit.Equal(l.BuyLimit) && prev.SellLimit.Equal(l.SellLimit) {
		return
	}

	s.logger.Info("Price limit updated",
		slog.String("inst_id", l.InstrumentID),
		slog.String("buy_limit", l.BuyLimit.String()),
		slog.String("sell_limit", l.SellLimit.String()),
		slog.Bool("enabled", l.Enabled))

	if s.store != nil {
		if err := s.store.SavePriceLimit(context.Background(), l); err != nil {
			s.logger.Error("Failed to save price limit", slog.Any("error", err))
		}
	}
}

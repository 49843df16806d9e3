package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"depth_go/internal/book"
	"depth_go/internal/domain"
)

// QuoteService keeps the latest top of book per instrument for display
// and logging. It is fed from the engine's publish hook.
type QuoteService struct {
	mu        sync.RWMutex
	quotes    map[string]*domain.Quote
	quoteChan chan domain.Quote
	dropped   uint64
}

// NewQuoteService creates a new QuoteService instance
func NewQuoteService() *QuoteService {
	return &QuoteService{
		quotes:    make(map[string]*domain.Quote),
		quoteChan: make(chan domain.Quote, 1000), // room for bursts
	}
}

// Publish queues the quote of a freshly published view. It runs on engine
// writer goroutines and never blocks; when the queue is full the quote is
// skipped, the next publish supersedes it.
func (s *QuoteService) Publish(v *book.View) {
	select {
	case s.quoteChan <- v.Quote():
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// StartQuoteProcessor starts a background goroutine to process queued quotes
func (s *QuoteService) StartQuoteProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case q := <-s.quoteChan:
				s.ProcessQuotes(q)
			}
		}
	}()
}

// ProcessQuotes stores quotes, replacing the previous one per instrument.
func (s *QuoteService) ProcessQuotes(quotes ...domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range quotes {
		q := quotes[i]
		if q.IsCrossed() {
			slog.Warn("Crossed book published",
				slog.String("inst_id", q.InstrumentID),
				slog.String("bid", q.BestBid.String()),
				slog.String("ask", q.BestAsk.String()))
		}
		s.quotes[q.InstrumentID] = &q
	}
}

// GetQuote returns the latest quote for an instrument
func (s *QuoteService) GetQuote(instrumentID string) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[instrumentID]
	if !ok {
		return domain.Quote{}, false
	}
	return *q, true
}

// GetAllQuotes returns all quotes sorted by instrument
func (s *QuoteService) GetAllQuotes() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		result = append(result, *q)
	}

	// Sort by instrument for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].InstrumentID < result[j].InstrumentID
	})

	return result
}

// Remove forgets an instrument's quote.
func (s *QuoteService) Remove(instrumentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, instrumentID)
}

// Dropped returns how many quotes were skipped because the queue was full.
func (s *QuoteService) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// LogSummary writes one line per instrument.
func (s *QuoteService) LogSummary(logger *slog.Logger) {
	for _, q := range s.GetAllQuotes() {
		attrs := []any{
			slog.String("inst_id", q.InstrumentID),
			slog.String("state", q.State.String()),
			slog.Int64("seq_id", q.SequenceID),
		}
		if mid := q.Mid(); mid != nil {
			attrs = append(attrs,
				slog.String("bid", q.BestBid.String()),
				slog.String("ask", q.BestAsk.String()),
				slog.String("mid", mid.String()),
				slog.String("spread_bps", q.SpreadBps().StringFixed(2)))
		}
		logger.Info("Quote", attrs...)
	}
}

package okx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"depth_go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	limits map[string]domain.PriceLimit
	fails  []error // returned, in order, before any limit
	calls  int
}

func (f *fakeSource) GetPriceLimit(_ context.Context, id string) (domain.PriceLimit, error) {
	f.calls++
	if len(f.fails) > 0 {
		err := f.fails[0]
		f.fails = f.fails[1:]
		return domain.PriceLimit{}, err
	}
	l, ok := f.limits[id]
	if !ok {
		return domain.PriceLimit{}, errors.New("not found")
	}
	return l, nil
}

type fakeSink struct {
	mu     sync.Mutex
	known  map[string]bool
	limits map[string]domain.PriceLimit
}

func (f *fakeSink) UpdatePriceLimit(l domain.PriceLimit) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[l.InstrumentID] {
		return false
	}
	f.limits[l.InstrumentID] = l
	return true
}

type fakeStore struct{ saved []domain.PriceLimit }

func (f *fakeStore) SavePriceLimit(_ context.Context, l domain.PriceLimit) error {
	f.saved = append(f.saved, l)
	return nil
}

func plimit(id, buy string, ts int64) domain.PriceLimit {
	return domain.PriceLimit{
		InstrumentID: id,
		BuyLimit:     decimal.RequireFromString(buy),
		SellLimit:    decimal.RequireFromString("0.1"),
		Enabled:      true,
		AsOf:         time.UnixMilli(ts),
	}
}

func TestPriceLimitSynchronizer_Refresh(t *testing.T) {
	src := &fakeSource{limits: map[string]domain.PriceLimit{"BTC-USDT": plimit("BTC-USDT", "70000", 1)}}
	sink := &fakeSink{known: map[string]bool{"BTC-USDT": true, "ETH-USDT": true}, limits: map[string]domain.PriceLimit{}}
	store := &fakeStore{}

	s := NewPriceLimitSynchronizer(src, sink, store, []string{"BTC-USDT", "ETH-USDT"}, 0)
	err := s.Refresh(context.Background())
	require.Error(t, err, "ETH fetch fails")
	assert.Contains(t, err.Error(), "ETH-USDT")

	assert.Equal(t, "70000", sink.limits["BTC-USDT"].BuyLimit.String())
	require.Len(t, store.saved, 1)

	// same values again: not re-saved
	require.Error(t, s.Refresh(context.Background()))
	assert.Len(t, store.saved, 1)
}

func noDelay(int) time.Duration { return 0 }

func TestPriceLimitSynchronizer_RetriesRetriableErrors(t *testing.T) {
	src := &fakeSource{
		limits: map[string]domain.PriceLimit{"BTC-USDT": plimit("BTC-USDT", "70000", 1)},
		fails: []error{
			domain.NewNetworkError("get price limit", errors.New("status=503")),
			domain.NewNetworkError("get price limit", errors.New("status=429")),
		},
	}
	sink := &fakeSink{known: map[string]bool{"BTC-USDT": true}, limits: map[string]domain.PriceLimit{}}
	s := NewPriceLimitSynchronizer(src, sink, nil, []string{"BTC-USDT"}, 0)
	s.backoff = noDelay

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, "70000", sink.limits["BTC-USDT"].BuyLimit.String())
}

func TestPriceLimitSynchronizer_RetryGivesUp(t *testing.T) {
	var fails []error
	for i := 0; i < 5; i++ {
		fails = append(fails, domain.NewNetworkError("get price limit", errors.New("status=503")))
	}
	src := &fakeSource{fails: fails}
	sink := &fakeSink{known: map[string]bool{"BTC-USDT": true}, limits: map[string]domain.PriceLimit{}}
	s := NewPriceLimitSynchronizer(src, sink, nil, []string{"BTC-USDT"}, 0)
	s.backoff = noDelay

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsRetriable(err))
	assert.Equal(t, refreshAttempts, src.calls)
}

func TestPriceLimitSynchronizer_FatalErrorNotRetried(t *testing.T) {
	src := &fakeSource{fails: []error{
		domain.NewFatalNetworkError("get price limit", errors.New("status=400")),
	}}
	sink := &fakeSink{known: map[string]bool{"BTC-USDT": true}, limits: map[string]domain.PriceLimit{}}
	s := NewPriceLimitSynchronizer(src, sink, nil, []string{"BTC-USDT"}, 0)
	s.backoff = noDelay

	require.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, src.calls)
}

func TestPriceLimitSynchronizer_IgnoresOlderLimits(t *testing.T) {
	sink := &fakeSink{known: map[string]bool{"DOGE-USDT": true}, limits: map[string]domain.PriceLimit{}}
	s := NewPriceLimitSynchronizer(&fakeSource{}, sink, nil, nil, 0)

	s.Apply(plimit("DOGE-USDT", "0.508", 200))
	s.Apply(plimit("DOGE-USDT", "0.600", 100))
	assert.Equal(t, "0.508", sink.limits["DOGE-USDT"].BuyLimit.String())

	s.Apply(plimit("DOGE-USDT", "0.510", 300))
	assert.Equal(t, "0.51", sink.limits["DOGE-USDT"].BuyLimit.String())
}

func TestPriceLimitSynchronizer_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{limits: map[string]domain.PriceLimit{"BTC-USDT": plimit("BTC-USDT", "1", 1)}}
	sink := &fakeSink{known: map[string]bool{"BTC-USDT": true}, limits: map[string]domain.PriceLimit{}}
	s := NewPriceLimitSynchronizer(src, sink, nil, []string{"BTC-USDT"}, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, src.calls, 2, "seed plus at least one refresh")
}

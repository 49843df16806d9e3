package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"depth_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *Storage {
	dbName := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	s, err := newStorage(db)
	if err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "depth.db")
	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer s.Close()

	if err := s.RecordResync(domain.ResyncRecord{InstrumentID: "BTC-USDT", Reason: "gap"}); err != nil {
		t.Fatalf("RecordResync failed: %v", err)
	}
}

func TestResyncJournal(t *testing.T) {
	s := setupTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []domain.ResyncRecord{
		{InstrumentID: "BTC-USDT", Reason: "gap", SequenceID: 10, CreatedAt: base},
		{InstrumentID: "BTC-USDT", Reason: "checksum", SequenceID: 20, CreatedAt: base.Add(time.Minute)},
		{InstrumentID: "ETH-USDT", Reason: "gap", SequenceID: 5, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := s.RecordResync(rec); err != nil {
			t.Fatalf("RecordResync failed: %v", err)
		}
	}

	all, err := s.ListResyncs("", 0)
	if err != nil {
		t.Fatalf("ListResyncs failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].InstrumentID != "ETH-USDT" {
		t.Errorf("expected newest first, got %s", all[0].InstrumentID)
	}

	btc, err := s.ListResyncs("BTC-USDT", 1)
	if err != nil {
		t.Fatalf("ListResyncs failed: %v", err)
	}
	if len(btc) != 1 || btc[0].Reason != "checksum" {
		t.Errorf("expected latest BTC checksum resync, got %+v", btc)
	}

	counts, err := s.ResyncCounts(base.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("ResyncCounts failed: %v", err)
	}
	if counts["gap"] != 1 || counts["checksum"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestPriceLimitUpsert(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	limit := domain.PriceLimit{
		InstrumentID: "DOGE-USDT",
		BuyLimit:     decimal.RequireFromString("0.508"),
		SellLimit:    decimal.RequireFromString("0.492"),
		Enabled:      true,
		AsOf:         time.UnixMilli(1597026383085),
	}
	if err := s.SavePriceLimit(ctx, limit); err != nil {
		t.Fatalf("SavePriceLimit failed: %v", err)
	}

	limit.BuyLimit = decimal.RequireFromString("0.510")
	limit.Enabled = false
	if err := s.SavePriceLimit(ctx, limit); err != nil {
		t.Fatalf("SavePriceLimit (update) failed: %v", err)
	}

	limits, err := s.LoadPriceLimits()
	if err != nil {
		t.Fatalf("LoadPriceLimits failed: %v", err)
	}
	if len(limits) != 1 {
		t.Fatalf("expected 1 limit, got %d", len(limits))
	}
	got := limits[0]
	if !got.BuyLimit.Equal(decimal.RequireFromString("0.51")) {
		t.Errorf("expected buy limit 0.51, got %s", got.BuyLimit)
	}
	if got.Enabled {
		t.Error("expected limit to be disabled after update")
	}
	if got.AsOf.UnixMilli() != 1597026383085 {
		t.Errorf("unexpected as_of %v", got.AsOf)
	}
}

type fakeJournal struct {
	ch chan domain.ResyncRecord
}

func (f *fakeJournal) RecordResync(rec domain.ResyncRecord) error {
	f.ch <- rec
	return nil
}

func TestResyncRecorder(t *testing.T) {
	j := &fakeJournal{ch: make(chan domain.ResyncRecord, 4)}
	r := NewResyncRecorder(j, 4)

	r.Start()
	defer r.Stop()
	r.Record(domain.ResyncRecord{InstrumentID: "BTC-USDT", Reason: "gap"})

	select {
	case rec := <-j.ch:
		if rec.Reason != "gap" {
			t.Errorf("unexpected record %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("record was not journaled")
	}
}

func TestResyncRecorder_StopDrainsQueue(t *testing.T) {
	j := &fakeJournal{ch: make(chan domain.ResyncRecord, 4)}
	r := NewResyncRecorder(j, 4)

	// queued before the drain goroutine runs, as during engine shutdown
	r.Record(domain.ResyncRecord{Reason: "a"})
	r.Record(domain.ResyncRecord{Reason: "b"})
	r.Start()
	r.Record(domain.ResyncRecord{Reason: "c"})
	r.Stop()

	if len(j.ch) != 3 {
		t.Errorf("expected 3 journaled records, got %d", len(j.ch))
	}
}

func TestResyncRecorder_RecordAfterStop(t *testing.T) {
	j := &fakeJournal{ch: make(chan domain.ResyncRecord, 4)}
	r := NewResyncRecorder(j, 4)
	r.Start()
	r.Stop()
	r.Stop()

	r.Record(domain.ResyncRecord{Reason: "late"}) // must not panic on the closed queue
	if len(j.ch) != 0 {
		t.Errorf("expected no journaled records, got %d", len(j.ch))
	}
}

func TestResyncRecorder_DropsWhenFull(t *testing.T) {
	j := &fakeJournal{ch: make(chan domain.ResyncRecord, 4)}
	r := NewResyncRecorder(j, 1)

	r.Record(domain.ResyncRecord{Reason: "a"})
	r.Record(domain.ResyncRecord{Reason: "b"}) // dropped, never blocks

	if len(r.queue) != 1 {
		t.Errorf("expected 1 queued record, got %d", len(r.queue))
	}
}

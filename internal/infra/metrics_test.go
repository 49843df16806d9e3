package infra

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_RecordApply(t *testing.T) {
	m := &Metrics{}

	m.RecordApply(1000)
	m.RecordApply(2000)
	m.RecordApply(3000)

	snap := m.Snapshot()

	if snap.UpdatesApplied != 3 {
		t.Errorf("Expected 3 updates, got %d", snap.UpdatesApplied)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgApplyLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgApplyLatencyNs)
	}
}

func TestMetrics_RecordEndToEnd(t *testing.T) {
	m := &Metrics{}

	m.RecordEndToEnd(4000)
	m.RecordEndToEnd(1000)
	m.RecordEndToEnd(-5) // clock skew, ignored

	snap := m.Snapshot()
	if snap.AvgEndToEndNs != 2500 {
		t.Errorf("Expected avg e2e 2500, got %d", snap.AvgEndToEndNs)
	}
	if snap.MaxEndToEndNs != 4000 {
		t.Errorf("Expected max e2e 4000, got %d", snap.MaxEndToEndNs)
	}

	m.Reset()
	if s := m.Snapshot(); s.AvgEndToEndNs != 0 || s.MaxEndToEndNs != 0 {
		t.Errorf("Expected e2e cleared after reset, got %+v", s)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_ResyncGauge(t *testing.T) {
	m := &Metrics{}

	m.EnterResync()
	m.EnterResync()
	m.LeaveResync()

	snap := m.Snapshot()
	if snap.ResyncingBooks != 1 {
		t.Errorf("Expected 1 resyncing book, got %d", snap.ResyncingBooks)
	}
	if snap.ResyncsCompleted != 1 {
		t.Errorf("Expected 1 completed resync, got %d", snap.ResyncsCompleted)
	}

	m.AbandonResync()
	if got := m.Snapshot(); got.ResyncingBooks != 0 || got.ResyncsCompleted != 1 {
		t.Errorf("abandon should not count a completion: %+v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	// must not panic
	m.RecordApply(1)
	m.RecordGap()
	m.RecordPricing(true)
	m.EnterResync()
	m.LeaveResync()
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordApply(1000)
	m.RecordError()
	m.RecordGap()
	m.IncrementConnections()

	m.Reset()
	snap := m.Snapshot()

	if snap.UpdatesApplied != 0 {
		t.Error("Expected 0 updates after reset")
	}
	if snap.ErrorsTotal != 0 || snap.SequenceGaps != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
}

func TestMetricsHandler_Exposition(t *testing.T) {
	m := &Metrics{}
	m.RecordGap()
	m.RecordChecksumMismatch()
	m.RecordPricing(false)

	reg, err := NewMetricsRegistry(m)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	srv := httptest.NewServer(MetricsHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"depth_book_sequence_gaps_total 1",
		"depth_book_checksum_mismatches_total 1",
		"depth_book_pricing_calls_total 1",
		"depth_book_resyncing_books 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

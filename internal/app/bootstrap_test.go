package app

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"depth_go/internal/domain"
	"depth_go/internal/infra"
	"depth_go/internal/infra/storage"

	"github.com/shopspring/decimal"
)

func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestBootstrap_SummaryReportsJournal(t *testing.T) {
	st, err := storage.NewStorage(filepath.Join(t.TempDir(), "depth.db"))
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer st.Close()

	if err := st.RecordResync(domain.ResyncRecord{InstrumentID: "BTC-USDT", Reason: "gap", SequenceID: 42}); err != nil {
		t.Fatalf("RecordResync failed: %v", err)
	}
	err = st.SavePriceLimit(context.Background(), domain.PriceLimit{
		InstrumentID: "BTC-USDT",
		BuyLimit:     decimal.RequireFromString("70000"),
		SellLimit:    decimal.RequireFromString("60000"),
		Enabled:      true,
		AsOf:         time.UnixMilli(1700000000000),
	})
	if err != nil {
		t.Fatalf("SavePriceLimit failed: %v", err)
	}

	buf := captureDefaultLogger(t)
	b := &Bootstrap{Storage: st, Metrics: &infra.Metrics{}, startedAt: time.Now().Add(-time.Minute)}
	b.Summary()

	out := buf.String()
	for _, want := range []string{
		`"msg":"Resyncs this session"`,
		`"msg":"Recent resync"`,
		`"seq_id":42`,
		`"msg":"Last price limit"`,
		`"buy_limit":"70000"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %s\n%s", want, out)
		}
	}
}

func TestBootstrap_SummaryWithoutStorage(t *testing.T) {
	buf := captureDefaultLogger(t)
	b := &Bootstrap{Metrics: &infra.Metrics{}}
	b.Summary()

	if !strings.Contains(buf.String(), "Session summary") {
		t.Errorf("expected session summary, got %s", buf.String())
	}
}

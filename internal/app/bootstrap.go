package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"depth_go/internal/infra"
	"depth_go/internal/infra/storage"

	"github.com/prometheus/client_golang/prometheus"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Metrics  *infra.Metrics
	Registry *prometheus.Registry

	startedAt time.Time
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, metrics)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Depth Go...")
	b.startedAt = time.Now()

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Metrics
	b.Metrics = &infra.Metrics{}
	reg, err := infra.NewMetricsRegistry(b.Metrics)
	if err != nil {
		return err
	}
	b.Registry = reg
	slog.Info("✅ Metrics registry ready")

	return nil
}

// StartMetricsServer serves /metrics and pprof on metrics.listen_addr
// until ctx is cancelled. An empty address disables it.
func (b *Bootstrap) StartMetricsServer(ctx context.Context) {
	addr := b.Config.Metrics.ListenAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", infra.MetricsHandler(b.Registry))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("🕵️ Metrics/pprof server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// summaryResyncs bounds how many journaled resyncs the summary lists.
const summaryResyncs = 10

// Summary logs what happened during this run: sync metrics, the journaled
// resyncs and the last stored price limit per instrument.
func (b *Bootstrap) Summary() {
	s := b.Metrics.Snapshot()
	slog.Info("📊 Session summary",
		slog.Uint64("updates_applied", s.UpdatesApplied),
		slog.Uint64("snapshots_applied", s.SnapshotsApplied),
		slog.Uint64("sequence_gaps", s.SequenceGaps),
		slog.Uint64("checksum_mismatches", s.ChecksumMismatches),
		slog.Uint64("resyncs_completed", s.ResyncsCompleted),
		slog.Uint64("pricing_calls", s.PricingCalls),
		slog.Int64("avg_apply_latency_ns", s.AvgApplyLatencyNs),
		slog.Int64("avg_e2e_latency_ns", s.AvgEndToEndNs),
		slog.Int64("max_e2e_latency_ns", s.MaxEndToEndNs))

	if b.Storage == nil {
		return
	}

	counts, err := b.Storage.ResyncCounts(b.startedAt)
	if err != nil {
		slog.Error("Failed to load resync counts", slog.Any("error", err))
	}
	for reason, n := range counts {
		slog.Info("Resyncs this session", slog.String("reason", reason), slog.Int64("count", n))
	}

	recent, err := b.Storage.ListResyncs("", summaryResyncs)
	if err != nil {
		slog.Error("Failed to list resyncs", slog.Any("error", err))
	}
	for _, r := range recent {
		slog.Info("Recent resync",
			slog.String("inst_id", r.InstrumentID),
			slog.String("reason", r.Reason),
			slog.Int64("seq_id", r.SequenceID),
			slog.String("detail", r.Detail),
			slog.Time("at", r.CreatedAt))
	}

	limits, err := b.Storage.LoadPriceLimits()
	if err != nil {
		slog.Error("Failed to load price limits", slog.Any("error", err))
	}
	for _, l := range limits {
		slog.Info("Last price limit",
			slog.String("inst_id", l.InstrumentID),
			slog.String("buy_limit", l.BuyLimit.String()),
			slog.String("sell_limit", l.SellLimit.String()),
			slog.Bool("enabled", l.Enabled),
			slog.Time("as_of", l.AsOf))
	}
}

// Close releases bootstrap resources.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close database", slog.Any("error", err))
		}
	}
}

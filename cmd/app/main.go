package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depth_go/internal/app"
	"depth_go/internal/engine"
	"depth_go/internal/event"
	"depth_go/internal/infra/okx"
	"depth_go/internal/infra/storage"
	"depth_go/internal/service"
)

func main() {
	configPath := os.Getenv("DEPTH_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	okxCfg := cfg.API.OKX

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Metrics / pprof
	bootstrap.StartMetricsServer(ctx)
	event.Warmup()

	// 4. Resync journal and quote publication
	journal := storage.NewResyncRecorder(bootstrap.Storage, 256)
	journal.Start()

	quotes := service.NewQuoteService()
	quotes.StartQuoteProcessor(ctx)

	// 5. Engine (one writer per instrument)
	var worker *okx.Worker
	eng := engine.New(engine.Options{
		BufferLimit:   cfg.Engine.BufferLimit,
		ChecksumDepth: cfg.Engine.ChecksumDepth,
		InboxSize:     cfg.Engine.InboxSize,
		Requester: engine.SnapshotRequesterFunc(func(ctx context.Context, id string) error {
			return worker.RequestSnapshot(ctx, id)
		}),
		Metrics:       bootstrap.Metrics,
		Logger:        slog.Default(),
		OnPublish:     quotes.Publish,
		OnResync:      journal.Record,
		OnUnsubscribe: quotes.Remove,
	})
	for _, id := range okxCfg.Instruments {
		if err := eng.Subscribe(id); err != nil {
			slog.Error("Failed to subscribe", slog.String("inst_id", id), slog.Any("error", err))
			os.Exit(1)
		}
	}

	// 6. Price limits (REST seed + refresh, stream in between)
	client := okx.NewClient(okxCfg.RestURL, okx.NewSigner(okxCfg.AccessKey, okxCfg.SecretKey, okxCfg.Passphrase))
	limits := okx.NewPriceLimitSynchronizer(client, eng, bootstrap.Storage, okxCfg.Instruments,
		time.Duration(okxCfg.PriceLimitRefreshSec)*time.Second)

	// 7. OKX Worker (Gateway)
	worker = okx.NewWorker(okx.WorkerConfig{
		URL:          okxCfg.WSURL,
		BooksChannel: okxCfg.BooksChannel,
		Instruments:  okxCfg.Instruments,
		OnPriceLimit: limits.Apply,
	}, eng, bootstrap.Metrics, slog.Default())

	eng.Start(ctx)
	slog.InfoContext(ctx, "✅ Engine started", slog.Int("instruments", len(okxCfg.Instruments)))

	go limits.Run(ctx)

	if err := worker.Connect(ctx); err != nil {
		slog.Error("Failed to connect OKX", slog.Any("error", err))
		os.Exit(1)
	}
	slog.InfoContext(ctx, "✅ OKXWorker started")

	slog.InfoContext(ctx, "✨ Depth Go fully operational. Press Ctrl+C to exit.")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down gracefully...")
			worker.Disconnect()
			eng.Stop()
			journal.Stop() // after the engine: its writers are the producers
			bootstrap.Summary()
			return
		case <-ticker.C:
			quotes.LogSummary(slog.Default())
		}
	}
}

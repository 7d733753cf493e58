// Command mirrorcurve is the single long-running process of spec §6: it
// wires config, persistence, the feed or replay driver, and the processor
// together and runs until a shutdown signal, at which point cancellation
// propagates through golang.org/x/sync/errgroup to every task and the
// session is finalized. Overall shape (load config, open DB, bootstrap
// otel, wire routes, wait on signal, graceful shutdown) is grounded on the
// teacher's cmd/ares/main.go, generalized from one HTTP-serving goroutine
// to the ingest/replay + processor + http trio this system needs.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mirrorcurve/internal/backoff"
	"mirrorcurve/internal/config"
	"mirrorcurve/internal/dedup"
	"mirrorcurve/internal/eventstore"
	"mirrorcurve/internal/execution"
	"mirrorcurve/internal/feed"
	"mirrorcurve/internal/httpapi"
	"mirrorcurve/internal/ingest"
	"mirrorcurve/internal/metrics"
	"mirrorcurve/internal/notify"
	"mirrorcurve/internal/observability"
	"mirrorcurve/internal/obslog"
	"mirrorcurve/internal/portfolio"
	"mirrorcurve/internal/processor"
	"mirrorcurve/internal/replay"
	"mirrorcurve/internal/session"
	"mirrorcurve/internal/simstore"
	"mirrorcurve/internal/types"
)

func main() {
	logger := obslog.New("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer, otelShutdown, err := observability.Setup(ctx)
	if err != nil {
		log.Fatalf("otel setup failed: %v", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	events, err := eventstore.NewPostgresStore(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("event store open failed: %v", err)
	}
	defer events.Close()

	gdb, err := simstore.DialPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("simstore dial failed: %v", err)
	}
	trades, err := simstore.New(gdb)
	if err != nil {
		log.Fatalf("simstore migrate failed: %v", err)
	}

	sessionID := session.NewID()
	mode := types.ModeLive
	if cfg.Replay.Enabled {
		mode = types.ModeReplay
	}

	wallet := portfolio.New(decimal.NewFromFloat(cfg.Simulation.InitialSolBalance))
	tracker := metrics.New()
	executor := execution.NewSimulationExecutor(
		decimal.NewFromFloat(cfg.Simulation.BaseSlippageBps),
		decimal.NewFromFloat(cfg.Simulation.PriceImpactFactor),
	)
	var notifier notify.Notifier = notify.NoopNotifier{}

	if err := trades.CreateSession(types.SimulationSession{
		ID:                sessionID,
		StartedAt:         time.Now(),
		Mode:              mode,
		InitialSolBalance: decimal.NewFromFloat(cfg.Simulation.InitialSolBalance),
	}); err != nil {
		log.Fatalf("session create failed: %v", err)
	}

	queue := make(chan types.TradeEvent, 10000)

	procCfg := processor.Config{
		PositionSizeSol:       decimal.NewFromFloat(cfg.Simulation.PositionSizeSol),
		BaseSlippageBps:       decimal.NewFromFloat(cfg.Simulation.BaseSlippageBps),
		PriceImpactFactor:     decimal.NewFromFloat(cfg.Simulation.PriceImpactFactor),
		MaxSlippageBps:        decimal.NewFromFloat(cfg.Simulation.MaxSlippageBps),
		ExecutionDelay:        time.Duration(cfg.Simulation.ExecutionDelayMs) * time.Millisecond,
		MaxTradesPerWalletMin: cfg.Simulation.MaxTradesPerWalletPerMin,
		SnapshotInterval:      time.Duration(cfg.Simulation.SnapshotIntervalSeconds) * time.Second,
		SkipMigrated:          cfg.Simulation.SkipMigratedTokens,
	}
	proc := processor.New(procCfg, queue, executor, wallet, tracker, trades, notifier, obslog.New("processor"), tracer, sessionID, mode)

	api := httpapi.New(trades, sessionID, mode)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		proc.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return api.Run(gctx, ":8090")
	})

	if cfg.Replay.Enabled {
		from, to, err := cfg.Replay.ReplayWindow()
		if err != nil {
			log.Fatalf("replay window invalid: %v", err)
		}
		driver := replay.New(events, queue, obslog.New("replay"), cfg.Replay.FilterWallets)
		g.Go(func() error {
			return driver.Run(gctx, from.Unix(), to.Unix())
		})
	} else {
		ring := dedup.New(cfg.WebSocket.DedupBufferSize)
		backoffCfg := backoff.Config{
			Base:         time.Duration(cfg.WebSocket.ReconnectBaseDelayMs) * time.Millisecond,
			Max:          time.Duration(cfg.WebSocket.ReconnectMaxDelayMs) * time.Millisecond,
			JitterFactor: cfg.WebSocket.ReconnectJitterFactor,
		}
		feedClient := feed.New(cfg.WebSocket.URL, backoffCfg, ring, cfg.WebSocket.ReceiveBufferSize)
		trackedWallets := make([]string, 0, len(cfg.WalletTracking))
		for walletID := range cfg.WalletTracking {
			trackedWallets = append(trackedWallets, walletID)
		}
		driver := ingest.New(feedClient, events, queue, ingest.DefaultConfig(), obslog.New("ingest"), trackedWallets)
		g.Go(func() error {
			driver.Run(gctx)
			return nil
		})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Println("shutdown signal received")
		cancel()
	case <-gctx.Done():
	}

	if err := g.Wait(); err != nil {
		logger.Printf("pipeline exited with error: %v", err)
	}

	finalSnap := proc.FinalSnapshot()
	now := time.Now()
	finalBalance := finalSnap.SolBalance
	if err := trades.CloseSession(sessionID, now, types.SimulationSession{FinalSolBalance: &finalBalance}); err != nil {
		logger.Printf("session close failed: %v", err)
	}
	logger.Printf("session %s finalized: trades=%d realized_pnl=%s sol_balance=%s",
		sessionID, finalSnap.TotalTrades, finalSnap.RealizedPnLSol, finalSnap.SolBalance)
}

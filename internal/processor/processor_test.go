package processor

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	noop "go.opentelemetry.io/otel/trace/noop"

	"mirrorcurve/internal/execution"
	"mirrorcurve/internal/metrics"
	"mirrorcurve/internal/notify"
	"mirrorcurve/internal/portfolio"
	"mirrorcurve/internal/simstore"
	"mirrorcurve/internal/types"
)

func testProcessor(t *testing.T, cfg Config) (*Processor, chan types.TradeEvent, *portfolio.Wallet) {
	t.Helper()
	db, err := simstore.DialSQLite(":memory:")
	if err != nil {
		t.Fatalf("dial sqlite: %v", err)
	}
	store, err := simstore.New(db)
	if err != nil {
		t.Fatalf("new simstore: %v", err)
	}

	wallet := portfolio.New(decimal.NewFromFloat(10))
	tracker := metrics.New()
	exec := execution.NewSimulationExecutor(decimal.NewFromFloat(100), decimal.NewFromFloat(1.0))
	logger := log.New(os.Stderr, "[test] ", 0)
	tracer := noop.NewTracerProvider().Tracer("test")

	queue := make(chan types.TradeEvent, 10)
	p := New(cfg, queue, exec, wallet, tracker, store, notify.NoopNotifier{}, logger, tracer, "session1", types.ModeReplay)
	return p, queue, wallet
}

func baseEvent(side types.Side) types.TradeEvent {
	return types.TradeEvent{
		ID:          1,
		Signature:   "sig1",
		Mint:        "mint1",
		Trader:      "trader1",
		Side:        side,
		VTokensPost: decimal.NewFromInt(1000000000),
		VSolPost:    decimal.NewFromFloat(30.0),
		Pool:        types.PumpCurvePool,
		Source:      types.SourceReplay,
	}
}

func defaultConfig() Config {
	return Config{
		PositionSizeSol:       decimal.NewFromFloat(1.0),
		BaseSlippageBps:       decimal.NewFromFloat(100),
		PriceImpactFactor:     decimal.NewFromFloat(1.0),
		MaxSlippageBps:        decimal.NewFromFloat(2000),
		MaxTradesPerWalletMin: 10,
		SnapshotInterval:      time.Hour,
	}
}

func TestHandleEventBuyOpensPosition(t *testing.T) {
	p, _, wallet := testProcessor(t, defaultConfig())
	p.handleEvent(context.Background(), baseEvent(types.Buy))

	if wallet.SolBalance().GreaterThanOrEqual(decimal.NewFromFloat(10)) {
		t.Error("expected sol balance to decrease after buy")
	}
	if _, ok := wallet.Position("mint1"); !ok {
		t.Error("expected an open position after buy")
	}
}

func TestHandleEventSkipsMigratedWhenConfigured(t *testing.T) {
	cfg := defaultConfig()
	cfg.SkipMigrated = true
	p, _, wallet := testProcessor(t, cfg)

	event := baseEvent(types.Buy)
	event.Pool = "raydium"
	p.handleEvent(context.Background(), event)

	if _, ok := wallet.Position("mint1"); ok {
		t.Error("migrated event must be skipped and not open a position")
	}
}

func TestHandleEventRateLimitsRepeatedTrader(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxTradesPerWalletMin = 1
	p, _, wallet := testProcessor(t, cfg)

	p.handleEvent(context.Background(), baseEvent(types.Buy))
	before, _ := wallet.Position("mint1")

	second := baseEvent(types.Buy)
	second.Mint = "mint2"
	p.handleEvent(context.Background(), second)

	if _, ok := wallet.Position("mint2"); ok {
		t.Error("second trade from same trader within window must be rate-limited")
	}
	after, _ := wallet.Position("mint1")
	if !before.TokenBalance.Equal(after.TokenBalance) {
		t.Error("first position must be unaffected by the rate-limited second event")
	}
}

func TestHandleEventSellWithNoPositionIsNoOp(t *testing.T) {
	p, _, wallet := testProcessor(t, defaultConfig())
	p.handleEvent(context.Background(), baseEvent(types.Sell))

	if wallet.Stats().TotalTradeCount != 0 {
		t.Error("selling with no open position must not register a trade")
	}
}

func TestRunDrainsQueueOnCancellation(t *testing.T) {
	p, queue, wallet := testProcessor(t, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	queue <- baseEvent(types.Buy)
	cancel()
	close(queue)

	p.Run(ctx)

	if _, ok := wallet.Position("mint1"); !ok {
		t.Error("expected the already-queued event to be processed despite cancellation")
	}
}

func TestFinalSnapshotReflectsWalletState(t *testing.T) {
	p, _, _ := testProcessor(t, defaultConfig())
	snap := p.FinalSnapshot()
	if !snap.SolBalance.Equal(decimal.NewFromFloat(10)) {
		t.Errorf("sol balance = %s, want 10", snap.SolBalance)
	}
}

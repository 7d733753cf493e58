// Package processor implements the single-reader pipeline stage of spec
// §4.12: the only goroutine permitted to mutate the wallet or the curve
// cache. Per-trader sliding-window rate limiting is grounded on the
// teacher's internal/binance/client.go RateLimiter (token-bucket shape,
// adapted here to a sliding window of timestamps since spec §4.12
// normatively specifies window semantics, not a token bucket).
package processor

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"mirrorcurve/internal/execution"
	"mirrorcurve/internal/metrics"
	"mirrorcurve/internal/notify"
	"mirrorcurve/internal/portfolio"
	"mirrorcurve/internal/simstore"
	"mirrorcurve/internal/types"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config carries the simulation-group knobs the processor needs per event.
type Config struct {
	PositionSizeSol       decimal.Decimal
	BaseSlippageBps       decimal.Decimal
	PriceImpactFactor     decimal.Decimal
	MaxSlippageBps        decimal.Decimal
	ExecutionDelay        time.Duration
	MaxTradesPerWalletMin int
	SnapshotInterval      time.Duration
	SkipMigrated          bool
}

// Processor drains the event queue and runs each event through the
// simulation pipeline (spec §4.12).
type Processor struct {
	cfg       Config
	queue     <-chan types.TradeEvent
	executor  execution.Executor
	wallet    *portfolio.Wallet
	tracker   *metrics.Tracker
	trades    *simstore.Store
	notifier  notify.Notifier
	logger    *log.Logger
	tracer    oteltrace.Tracer
	sessionID string
	mode      types.Mode

	rate         *slidingWindowLimiter
	lastSnapshot time.Time
}

// New builds a Processor wired to its collaborators.
func New(
	cfg Config,
	queue <-chan types.TradeEvent,
	executor execution.Executor,
	wallet *portfolio.Wallet,
	tracker *metrics.Tracker,
	trades *simstore.Store,
	notifier notify.Notifier,
	logger *log.Logger,
	tracer oteltrace.Tracer,
	sessionID string,
	mode types.Mode,
) *Processor {
	return &Processor{
		cfg: cfg, queue: queue, executor: executor, wallet: wallet, tracker: tracker,
		trades: trades, notifier: notifier, logger: logger, tracer: tracer,
		sessionID: sessionID, mode: mode,
		rate: newSlidingWindowLimiter(cfg.MaxTradesPerWalletMin, time.Minute),
	}
}

// Run drains the queue until it is closed or ctx is canceled, honoring the
// "drain what's queued, never lose an enqueued event" shutdown invariant
// (spec §5) by only checking ctx between events, never abandoning mid-drain.
func (p *Processor) Run(ctx context.Context) {
	p.lastSnapshot = time.Now()

	for {
		select {
		case event, ok := <-p.queue:
			if !ok {
				return
			}
			p.handleEvent(ctx, event)
		case <-ctx.Done():
			p.drainRemaining(ctx)
			return
		}
	}
}

// drainRemaining empties whatever is already buffered in the queue after
// cancellation, per spec §5's "no event enqueued is lost to cancellation".
func (p *Processor) drainRemaining(ctx context.Context) {
	for {
		select {
		case event, ok := <-p.queue:
			if !ok {
				return
			}
			p.handleEvent(context.Background(), event)
		default:
			return
		}
	}
}

func (p *Processor) handleEvent(ctx context.Context, event types.TradeEvent) {
	ctx, span := p.tracer.Start(ctx, "processor.handle_event")
	defer span.End()

	// Step 1: unconditional curve-state update.
	p.tracker.Update(event.Mint, event.VTokensPost, event.VSolPost)

	// Step 2: migration filter.
	if p.cfg.SkipMigrated && event.Migrated() {
		return
	}

	// Step 3: per-trader sliding-window rate limit.
	if !p.rate.Admit(event.Trader, time.Now()) {
		return
	}

	// Step 4: inter-event delay, live only.
	if event.Source == types.SourceLive && p.cfg.ExecutionDelay > 0 {
		select {
		case <-time.After(p.cfg.ExecutionDelay):
		case <-ctx.Done():
			return
		}
	}

	// Step 5: build the intent, fail-closed on preconditions.
	intent, ok := p.buildIntent(event)
	if !ok {
		return
	}

	// Step 6: execute.
	result, err := p.executor.Execute(ctx, intent)
	if err != nil {
		p.logger.Printf("executor error for %s: %v", event.Signature, err)
		return
	}
	if !result.Success {
		p.logger.Printf("rejected %s %s: %s", event.Side, event.Mint, result.ErrorReason)
		return
	}

	// Step 7: mutate the portfolio.
	var realizedPnL *decimal.Decimal
	if event.Side == types.Buy {
		p.wallet.RecordBuy(event.Mint, result.ActualSolAmount, result.ActualTokenAmount, event.VSolPost, time.Now())
	} else {
		pnl := p.wallet.RecordSell(event.Mint, intent.SolAmount, result.ActualSolAmount)
		realizedPnL = &pnl
	}
	p.wallet.UpdateDrawdown(p.wallet.TotalValue(p.tracker.ResolveCurrentPrice))

	// Step 8: persist the fill.
	trade := types.SimulatedTrade{
		SourceTradeEventID: event.ID,
		SessionID:          p.sessionID,
		Mint:               event.Mint,
		Side:               event.Side,
		SolAmount:          result.ActualSolAmount,
		TokenAmount:        result.ActualTokenAmount,
		SimulatedPrice:     result.EffectivePrice,
		SlippageBps:        result.SlippageBps,
		DelayMs:            intent.DelayMs,
		ExecutedAt:         time.Now(),
		VTokensAtExecution: event.VTokensPost,
		VSolAtExecution:    event.VSolPost,
		RealizedPnL:        realizedPnL,
	}
	if err := p.trades.InsertTrade(trade); err != nil {
		p.logger.Printf("persist trade failed: %v", err)
	}
	p.notifier.Notify(notify.PortfolioEvent{Trade: trade})

	// Step 9: periodic snapshot.
	if time.Since(p.lastSnapshot) >= p.cfg.SnapshotInterval {
		p.takeAndPersistSnapshot()
	}
}

func (p *Processor) buildIntent(event types.TradeEvent) (types.TradeIntent, bool) {
	vTokens, vSol, ok := p.tracker.Reserves(event.Mint)
	if !ok {
		vTokens, vSol = event.VTokensPost, event.VSolPost
	}

	if event.Side == types.Buy {
		if p.wallet.SolBalance().LessThan(p.cfg.PositionSizeSol) {
			return types.TradeIntent{}, false
		}
		return types.NewBuyIntent(event.Mint, p.cfg.PositionSizeSol, p.cfg.MaxSlippageBps, vTokens, vSol, event.ID, p.cfg.ExecutionDelay.Milliseconds()), true
	}

	pos, ok := p.wallet.Position(event.Mint)
	if !ok || !pos.TokenBalance.IsPositive() {
		return types.TradeIntent{}, false
	}
	return types.NewSellIntent(event.Mint, pos.TokenBalance, p.cfg.MaxSlippageBps, vTokens, vSol, event.ID, p.cfg.ExecutionDelay.Milliseconds()), true
}

// takeAndPersistSnapshot snapshots current performance and resets the
// interval clock regardless of persistence outcome.
func (p *Processor) takeAndPersistSnapshot() {
	snap := metrics.TakeSnapshot(p.sessionID, p.wallet, p.tracker, time.Now())
	if err := p.trades.InsertSnapshot(snap); err != nil {
		p.logger.Printf("persist snapshot failed: %v", err)
	}
	p.lastSnapshot = time.Now()
}

// FinalSnapshot takes and persists a terminal snapshot at shutdown (spec
// §4.12).
func (p *Processor) FinalSnapshot() types.PerformanceSnapshot {
	snap := metrics.TakeSnapshot(p.sessionID, p.wallet, p.tracker, time.Now())
	if err := p.trades.InsertSnapshot(snap); err != nil {
		p.logger.Printf("persist final snapshot failed: %v", err)
	}
	return snap
}

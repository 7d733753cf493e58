// Package metrics owns the curve-state cache (spec §4.5) — the last
// observed (v_tokens, v_sol) pair per mint — and produces PerformanceSnapshot
// projections of wallet + cache state. Cache shape (map guarded by a
// RWMutex, an explicit Reset instead of per-entry TTL since curve state
// never expires on its own) grounded on the teacher's price_cache.go.
package metrics

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mirrorcurve/internal/portfolio"
	"mirrorcurve/internal/types"
)

// curveState is the most recently observed reserve pair for one mint.
type curveState struct {
	vTokens decimal.Decimal
	vSol    decimal.Decimal
}

// Tracker is the single-owner curve-state cache. Per spec §5 it is owned by
// the processor and never shared beyond it.
type Tracker struct {
	mu     sync.RWMutex
	curves map[string]curveState
}

// New creates an empty curve-state cache.
func New() *Tracker {
	return &Tracker{curves: make(map[string]curveState)}
}

// Update records mint's latest reserves, unconditionally — spec §4.12 step 1
// requires this to run even for events the processor later discards.
func (t *Tracker) Update(mint string, vTokens, vSol decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curves[mint] = curveState{vTokens: vTokens, vSol: vSol}
}

// ResolveCurrentPrice returns the spot price for mint from the cache, or
// zero if the mint has never been observed (spec §4.5).
func (t *Tracker) ResolveCurrentPrice(mint string) decimal.Decimal {
	t.mu.RLock()
	c, ok := t.curves[mint]
	t.mu.RUnlock()
	if !ok || !c.vTokens.IsPositive() {
		return decimal.Zero
	}
	return c.vSol.DivRound(c.vTokens, 18)
}

// Reserves returns the last-known (v_tokens, v_sol) pair for mint, used by
// the processor to build TradeIntents without re-reading the triggering
// event (spec §4.12 step 1 feeds every later step).
func (t *Tracker) Reserves(mint string) (vTokens, vSol decimal.Decimal, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.curves[mint]
	return c.vTokens, c.vSol, ok
}

// Reset clears the curve cache (spec §4.5).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curves = make(map[string]curveState)
}

// TakeSnapshot produces a PerformanceSnapshot from wallet's current counters
// and this tracker's cache (spec §4.5).
func TakeSnapshot(sessionID string, wallet *portfolio.Wallet, tracker *Tracker, takenAt time.Time) types.PerformanceSnapshot {
	stats := wallet.Stats()
	decided := stats.WinCount + stats.LossCount

	winRate := decimal.Zero
	avgROI := decimal.Zero
	if decided > 0 {
		d := decimal.NewFromInt(int64(decided))
		winRate = decimal.NewFromInt(int64(stats.WinCount)).DivRound(d, 8).Mul(decimal.NewFromInt(100))
		avgROI = stats.CumulativeROIPct.DivRound(d, 8)
	}

	unrealized := wallet.UnrealizedPnL(tracker.ResolveCurrentPrice)
	totalValue := wallet.TotalValue(tracker.ResolveCurrentPrice)
	largestMint, largestCostBasis := wallet.LargestPosition()
	_ = largestMint

	return types.PerformanceSnapshot{
		SessionID:          sessionID,
		TakenAt:            takenAt,
		TotalTrades:        stats.TotalTradeCount,
		WinCount:           stats.WinCount,
		LossCount:          stats.LossCount,
		WinRatePercent:     winRate,
		AvgRoiPercent:      avgROI,
		RealizedPnLSol:     stats.TotalRealizedPnL,
		UnrealizedPnLSol:   unrealized,
		MaxDrawdownPercent: stats.MaxDrawdownPercent,
		SolBalance:         stats.SolBalance,
		TotalValueSol:      totalValue,
		PositionsOpen:      stats.OpenPositionCount,
		LargestPositionSol: largestCostBasis,
	}
}

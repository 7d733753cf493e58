// Package portfolio owns the single mutable VirtualWallet and implements
// the buy/sell/mark-to-market/drawdown rules of spec §4.4. Exactly one
// goroutine — the processor — is permitted to call the mutating methods;
// see spec §5 ("single-owner, shared-nothing datum").
//
// Thread-safety shape grounded on ares_api/internal/trading/sandbox.go's
// SandboxTrader (RWMutex-guarded balance + position bookkeeping), adapted
// to the VWAP cost basis / drawdown / closed-position semantics spec §4.4
// actually requires (the teacher's sandbox does neither).
package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mirrorcurve/internal/types"
)

// PriceFunc resolves the current spot price for a mint, used for
// mark-to-market valuation. It must never be called from inside a
// Portfolio method while holding the wallet's lock from the caller's side —
// Portfolio acquires its own lock internally.
type PriceFunc func(mint string) decimal.Decimal

// Wallet is the single-owner virtual portfolio. All exported methods are
// safe to call from one goroutine at a time; concurrent external readers
// are not supported by design (spec §5 forbids them in this core).
type Wallet struct {
	mu sync.RWMutex

	solBalance          decimal.Decimal
	positions           map[string]*types.Position
	totalRealizedPnL    decimal.Decimal
	cumulativeROIPct    decimal.Decimal
	totalTradeCount     int
	winCount            int
	lossCount           int
	highWaterMark       decimal.Decimal
	maxDrawdownPercent  decimal.Decimal
}

// New creates a wallet funded with initial SOL; high_water_mark starts at
// the same value (spec §3 VirtualWallet lifecycle).
func New(initial decimal.Decimal) *Wallet {
	return &Wallet{
		solBalance:    initial,
		positions:     make(map[string]*types.Position),
		highWaterMark: initial,
	}
}

// Reset discards all state and re-funds the wallet, for session reuse in
// tests (spec §4.4 Reset).
func (w *Wallet) Reset(initial decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.solBalance = initial
	w.positions = make(map[string]*types.Position)
	w.totalRealizedPnL = decimal.Zero
	w.cumulativeROIPct = decimal.Zero
	w.totalTradeCount = 0
	w.winCount = 0
	w.lossCount = 0
	w.highWaterMark = initial
	w.maxDrawdownPercent = decimal.Zero
}

// SolBalance returns the current uncommitted SOL balance.
func (w *Wallet) SolBalance() decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.solBalance
}

// Position returns a copy of the open position for mint, if any.
func (w *Wallet) Position(mint string) (types.Position, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.positions[mint]
	if !ok {
		return types.Position{}, false
	}
	return *p, true
}

// Stats is a read-only bundle of wallet counters, used by Metrics and the
// HTTP status surface.
type Stats struct {
	TotalRealizedPnL   decimal.Decimal
	TotalTradeCount    int
	WinCount           int
	LossCount          int
	CumulativeROIPct   decimal.Decimal
	HighWaterMark      decimal.Decimal
	MaxDrawdownPercent decimal.Decimal
	SolBalance         decimal.Decimal
	OpenPositionCount  int
}

func (w *Wallet) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		TotalRealizedPnL:   w.totalRealizedPnL,
		TotalTradeCount:    w.totalTradeCount,
		WinCount:           w.winCount,
		LossCount:          w.lossCount,
		CumulativeROIPct:   w.cumulativeROIPct,
		HighWaterMark:      w.highWaterMark,
		MaxDrawdownPercent: w.maxDrawdownPercent,
		SolBalance:         w.solBalance,
		OpenPositionCount:  len(w.positions),
	}
}

// RecordBuy applies a successful buy fill (spec §4.4 Buy). Insufficient
// balance is a fail-closed no-op: the buy is skipped and no counters move.
// triggeredAt/vSolAtOpen are only used when this buy opens a new position.
func (w *Wallet) RecordBuy(mint string, solAmount, tokenAmount, vSolAtOpen decimal.Decimal, triggeredAt time.Time) (applied bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.solBalance.LessThan(solAmount) {
		return false
	}

	w.solBalance = w.solBalance.Sub(solAmount)
	w.totalTradeCount++

	if p, ok := w.positions[mint]; ok {
		p.CostBasisSol = p.CostBasisSol.Add(solAmount)
		p.TokenBalance = p.TokenBalance.Add(tokenAmount)
		p.BuyCount++
	} else {
		w.positions[mint] = &types.Position{
			Mint:         mint,
			TokenBalance: tokenAmount,
			CostBasisSol: solAmount,
			OpenedAt:     triggeredAt,
			VSolAtOpen:   vSolAtOpen,
			BuyCount:     1,
		}
	}
	return true
}

// RecordSell applies a successful sell fill (spec §4.4 Sell) and returns the
// realized PnL booked by this sell (zero if there was no open position,
// which is itself a fail-closed no-op beyond the zero return).
func (w *Wallet) RecordSell(mint string, requestedTokens, requestedSol decimal.Decimal) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.positions[mint]
	if !ok {
		return decimal.Zero
	}

	soldTokens := decimal.Min(requestedTokens, p.TokenBalance)
	proportionSold := soldTokens.DivRound(p.TokenBalance, 18)
	costBasisSold := p.CostBasisSol.Mul(proportionSold)

	var actualSol decimal.Decimal
	if requestedTokens.IsPositive() {
		actualSol = requestedSol.Mul(soldTokens.DivRound(requestedTokens, 18))
	} else {
		actualSol = decimal.Zero
	}

	realizedPnL := actualSol.Sub(costBasisSold)

	w.solBalance = w.solBalance.Add(actualSol)
	p.TokenBalance = p.TokenBalance.Sub(soldTokens)
	p.CostBasisSol = p.CostBasisSol.Sub(costBasisSold)
	p.SellCount++
	w.totalTradeCount++

	w.totalRealizedPnL = w.totalRealizedPnL.Add(realizedPnL)
	if realizedPnL.IsPositive() {
		w.winCount++
	} else {
		w.lossCount++
	}
	if costBasisSold.IsPositive() {
		w.cumulativeROIPct = w.cumulativeROIPct.Add(realizedPnL.DivRound(costBasisSold, 8).Mul(decimal.NewFromInt(100)))
	}

	if p.IsClosed() {
		delete(w.positions, mint)
	}

	return realizedPnL
}

// UnrealizedPnL sums (balance*price - cost_basis) over open positions (spec
// §4.4 Mark-to-market).
func (w *Wallet) UnrealizedPnL(price PriceFunc) decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total := decimal.Zero
	for mint, p := range w.positions {
		if !p.TokenBalance.IsPositive() {
			continue
		}
		total = total.Add(p.TokenBalance.Mul(price(mint)).Sub(p.CostBasisSol))
	}
	return total
}

// TotalValue is sol_balance + sum(balance*price) over open positions (spec
// §4.4 Mark-to-market).
func (w *Wallet) TotalValue(price PriceFunc) decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total := w.solBalance
	for mint, p := range w.positions {
		total = total.Add(p.TokenBalance.Mul(price(mint)))
	}
	return total
}

// UpdateDrawdown advances the high-water mark and max drawdown given the
// wallet's current total value (spec §4.4 Drawdown update).
func (w *Wallet) UpdateDrawdown(currentValue decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if currentValue.GreaterThan(w.highWaterMark) {
		w.highWaterMark = currentValue
	}
	if w.highWaterMark.IsPositive() {
		ddPct := w.highWaterMark.Sub(currentValue).DivRound(w.highWaterMark, 8).Mul(decimal.NewFromInt(100))
		if ddPct.GreaterThan(w.maxDrawdownPercent) {
			w.maxDrawdownPercent = ddPct
		}
	}
}

// LargestPosition returns the mint and SOL cost basis of the largest open
// position, for the HTTP status surface (SPEC_FULL §3 expansion).
func (w *Wallet) LargestPosition() (mint string, costBasisSol decimal.Decimal) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	largest := decimal.Zero
	for m, p := range w.positions {
		if p.CostBasisSol.GreaterThan(largest) {
			largest = p.CostBasisSol
			mint = m
		}
	}
	return mint, largest
}

// Package types holds the data model shared across the simulator: the
// immutable upstream TradeEvent, the mutable VirtualWallet/Position pair,
// and the records the simulator persists per execution.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an upstream trade or a simulated fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide maps an upstream txType case-insensitively: "buy" maps to Buy,
// anything else maps to Sell (spec §4.9).
func ParseSide(raw string) Side {
	if strings.EqualFold(raw, "buy") {
		return Buy
	}
	return Sell
}

// Source tags where an event entered the pipeline from. It is runtime-only
// and never persisted (spec §3).
type Source string

const (
	SourceLive   Source = "live"
	SourceReplay Source = "replay"
)

// PumpCurvePool is the sentinel pool value meaning "still on the bonding
// curve". Any other non-empty pool value indicates the token migrated off
// the curve.
const PumpCurvePool = "pump"

// TradeEvent is a single upstream trade observation, immutable once
// constructed. ID and IngestedAt are assigned by the event store on insert.
type TradeEvent struct {
	ID              int64
	Signature       string
	Mint            string
	Trader          string
	Side            Side
	TokenAmount     decimal.Decimal // precision 28, scale 12
	SolAmount       decimal.Decimal // precision 18, scale 9
	NewTokenBalance decimal.Decimal // same precision as TokenAmount
	CurveKey        string
	VTokensPost     decimal.Decimal
	VSolPost        decimal.Decimal
	MarketCapSol    decimal.Decimal // same precision as SolAmount
	Pool            string          // "" or PumpCurvePool or a migration target
	ReceivedAt      time.Time
	IngestedAt      time.Time
	Source          Source
}

// Migrated reports whether this event's pool field indicates the token has
// left the bonding curve.
func (e TradeEvent) Migrated() bool {
	return e.Pool != "" && e.Pool != PumpCurvePool
}

// Position is a single mint's open exposure inside a VirtualWallet.
type Position struct {
	Mint           string
	TokenBalance   decimal.Decimal
	CostBasisSol   decimal.Decimal
	OpenedAt       time.Time
	VSolAtOpen     decimal.Decimal
	BuyCount       int
	SellCount      int
}

// IsClosed reports whether the position has no remaining tokens.
func (p Position) IsClosed() bool {
	return !p.TokenBalance.IsPositive()
}

// AvgEntryPrice is the VWAP cost basis per token while the position is open,
// zero when the position has no balance.
func (p Position) AvgEntryPrice() decimal.Decimal {
	if !p.TokenBalance.IsPositive() {
		return decimal.Zero
	}
	return p.CostBasisSol.DivRound(p.TokenBalance, 18)
}

// SimulatedTrade is the immutable record of one synthetic fill.
type SimulatedTrade struct {
	ID                  int64
	SourceTradeEventID  int64
	SessionID           string
	Mint                string
	Side                Side
	SolAmount           decimal.Decimal
	TokenAmount         decimal.Decimal
	SimulatedPrice      decimal.Decimal // precision 28, scale 18
	SlippageBps         decimal.Decimal // precision 8, scale 2
	DelayMs             int64
	ExecutedAt          time.Time
	VTokensAtExecution  decimal.Decimal
	VSolAtExecution     decimal.Decimal
	RealizedPnL         *decimal.Decimal // sells only
}

// Mode distinguishes a live session from a replay session.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

// SimulationSession is the unit of reproducibility: one contiguous run with
// a single immutable configuration.
type SimulationSession struct {
	ID                 string
	StartedAt          time.Time
	EndedAt            *time.Time
	Mode               Mode
	ConfigJSON         string
	InitialSolBalance  decimal.Decimal
	FinalSolBalance    *decimal.Decimal
}

// PerformanceSnapshot is a frozen projection of wallet + metrics state at a
// moment in time.
type PerformanceSnapshot struct {
	ID                  int64
	SessionID           string
	TakenAt             time.Time
	TotalTrades         int
	WinCount            int
	LossCount           int
	WinRatePercent      decimal.Decimal // precision 8, scale 4
	AvgRoiPercent       decimal.Decimal
	RealizedPnLSol      decimal.Decimal
	UnrealizedPnLSol    decimal.Decimal
	MaxDrawdownPercent  decimal.Decimal
	SolBalance          decimal.Decimal
	TotalValueSol       decimal.Decimal
	PositionsOpen       int             // expansion: derived, not authoritative
	LargestPositionSol  decimal.Decimal // expansion: derived, not authoritative
}

// TradeIntent is what the processor hands the executor: either a buy of a
// fixed SOL amount or a sell of a fixed token amount. Per spec §9 the source
// protocol overloads a single numeric field for both; this type keeps the
// overload (SolAmount doubles as "tokens to sell" for Sell intents, as the
// field comment documents) so the executor's signature matches spec §4.3
// exactly, while internal callers should prefer the tagged constructors
// below over touching SolAmount directly.
type TradeIntent struct {
	Mint            string
	Side            Side
	SolAmount       decimal.Decimal // buy: SOL in. sell: tokens to sell (spec §9 overload).
	MaxSlippageBps  decimal.Decimal
	VTokens         decimal.Decimal
	VSol            decimal.Decimal
	SourceEventID   int64
	DelayMs         int64
}

// NewBuyIntent builds a TradeIntent for spending solIn SOL.
func NewBuyIntent(mint string, solIn, maxSlippageBps, vTokens, vSol decimal.Decimal, sourceEventID, delayMs int64) TradeIntent {
	return TradeIntent{
		Mint: mint, Side: Buy, SolAmount: solIn,
		MaxSlippageBps: maxSlippageBps, VTokens: vTokens, VSol: vSol,
		SourceEventID: sourceEventID, DelayMs: delayMs,
	}
}

// NewSellIntent builds a TradeIntent for selling tokensIn tokens.
func NewSellIntent(mint string, tokensIn, maxSlippageBps, vTokens, vSol decimal.Decimal, sourceEventID, delayMs int64) TradeIntent {
	return TradeIntent{
		Mint: mint, Side: Sell, SolAmount: tokensIn,
		MaxSlippageBps: maxSlippageBps, VTokens: vTokens, VSol: vSol,
		SourceEventID: sourceEventID, DelayMs: delayMs,
	}
}

// TradeExecutionResult is what the executor hands back to the processor.
type TradeExecutionResult struct {
	Success           bool
	ActualTokenAmount decimal.Decimal
	ActualSolAmount   decimal.Decimal
	EffectivePrice    decimal.Decimal
	SlippageBps       decimal.Decimal
	ErrorReason       string
}

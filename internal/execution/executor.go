// Package execution implements the single capability seam between the
// processor and a fill implementation (spec §4.3/§9). Executor is the
// interface; SimulationExecutor is the only implementation in this core,
// chosen once at process start and never switched at runtime — a future
// live executor (submitting real swaps) implements the same interface
// without the processor changing at all.
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"mirrorcurve/internal/pricing"
	"mirrorcurve/internal/types"
)

// Executor executes one TradeIntent and returns the fill result. It never
// returns an error for a rejected trade (slippage cap, bad preconditions) —
// those surface as Success: false per spec §4.3/§7.
type Executor interface {
	Execute(ctx context.Context, intent types.TradeIntent) (types.TradeExecutionResult, error)
}

// SimulationExecutor is a pure function of its inputs: same intent, same
// curve state, same config => same result, every time. This is what makes
// replay bit-for-bit deterministic.
type SimulationExecutor struct {
	BaseSlippageBps   decimal.Decimal
	PriceImpactFactor decimal.Decimal
}

// NewSimulationExecutor builds an executor parameterized by the slippage
// model's two configuration knobs (spec §6 Simulation group).
func NewSimulationExecutor(baseSlippageBps, priceImpactFactor decimal.Decimal) *SimulationExecutor {
	return &SimulationExecutor{BaseSlippageBps: baseSlippageBps, PriceImpactFactor: priceImpactFactor}
}

// Execute computes the deterministic fill for intent (spec §4.3).
func (e *SimulationExecutor) Execute(_ context.Context, intent types.TradeIntent) (types.TradeExecutionResult, error) {
	// Price impact is measured in SOL on both sides: a sell's SolAmount holds
	// tokens, so its impact is taken from the raw SOL it would return.
	impactSol := intent.SolAmount
	if intent.Side != types.Buy {
		rawSol, err := pricing.SolOut(intent.SolAmount, intent.VTokens, intent.VSol)
		if err != nil {
			return types.TradeExecutionResult{Success: false, ErrorReason: err.Error()}, nil
		}
		impactSol = rawSol
	}
	totalBps := pricing.TotalSlippageBps(impactSol, intent.VSol, e.BaseSlippageBps, e.PriceImpactFactor)
	if pricing.Rejected(totalBps, intent.MaxSlippageBps) {
		return types.TradeExecutionResult{
			Success:     false,
			ErrorReason: "slippage_cap_exceeded",
			SlippageBps: totalBps,
		}, nil
	}

	switch intent.Side {
	case types.Buy:
		return e.executeBuy(intent, totalBps)
	default:
		return e.executeSell(intent, totalBps)
	}
}

func (e *SimulationExecutor) executeBuy(intent types.TradeIntent, totalBps decimal.Decimal) (types.TradeExecutionResult, error) {
	rawTokens, err := pricing.TokensOut(intent.SolAmount, intent.VTokens, intent.VSol)
	if err != nil {
		return types.TradeExecutionResult{Success: false, ErrorReason: err.Error()}, nil
	}
	actualTokens := pricing.ApplySlippage(rawTokens, totalBps)
	return types.TradeExecutionResult{
		Success:           true,
		ActualTokenAmount: actualTokens,
		ActualSolAmount:   intent.SolAmount,
		EffectivePrice:    effectivePrice(intent.SolAmount, actualTokens),
		SlippageBps:       totalBps,
	}, nil
}

func (e *SimulationExecutor) executeSell(intent types.TradeIntent, totalBps decimal.Decimal) (types.TradeExecutionResult, error) {
	rawSol, err := pricing.SolOut(intent.SolAmount, intent.VTokens, intent.VSol)
	if err != nil {
		return types.TradeExecutionResult{Success: false, ErrorReason: err.Error()}, nil
	}
	actualSol := pricing.ApplySlippage(rawSol, totalBps)
	return types.TradeExecutionResult{
		Success:           true,
		ActualTokenAmount: intent.SolAmount, // intent.SolAmount carries "tokens to sell" for Sell intents, spec §9
		ActualSolAmount:   actualSol,
		EffectivePrice:    effectivePrice(actualSol, intent.SolAmount),
		SlippageBps:       totalBps,
	}, nil
}

// effectivePrice is sol/tokens, or zero if tokens is zero (spec §4.3).
func effectivePrice(sol, tokens decimal.Decimal) decimal.Decimal {
	if tokens.IsZero() {
		return decimal.Zero
	}
	return sol.DivRound(tokens, 18)
}

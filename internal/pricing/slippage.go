package pricing

import "github.com/shopspring/decimal"

const bpsPrecision = 4

// tenThousand is the bps scale factor (10_000 bps = 100%).
var tenThousand = decimal.NewFromInt(10000)

// TotalSlippageBps computes the deterministic, uncapped total slippage, in
// basis points, for a trade of solAmount against a curve with vSol virtual
// SOL reserves (spec §4.2):
//
//	impact_bps = (sol_amount / v_sol) * price_impact_factor * 10000
//	total_bps  = base_slippage_bps + impact_bps
//
// The cap against maxSlippageBps is deliberately NOT applied here: spec
// §4.2 requires the rejection decision (Rejected, below) to see the value
// *before* any clamping. Callers that pass the rejection check may use this
// value directly — it is already <= maxSlippageBps in that case.
//
// When vSol is non-positive, the function returns baseSlippageBps unchanged
// (there is no curve to measure impact against).
func TotalSlippageBps(solAmount, vSol, baseSlippageBps, priceImpactFactor decimal.Decimal) decimal.Decimal {
	if !vSol.IsPositive() {
		return baseSlippageBps
	}
	impact := solAmount.DivRound(vSol, bpsPrecision+4).Mul(priceImpactFactor).Mul(tenThousand)
	return baseSlippageBps.Add(impact).Round(bpsPrecision)
}

// ApplySlippage reduces rawAmount by totalBps basis points:
// actual = raw * (1 - total_bps/10000).
func ApplySlippage(rawAmount, totalBps decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(totalBps.DivRound(tenThousand, bpsPrecision+4))
	return rawAmount.Mul(factor)
}

// Rejected reports whether totalBps exceeds maxSlippageBps and the intent
// must be rejected before any clamping is applied (spec §4.2).
func Rejected(totalBps, maxSlippageBps decimal.Decimal) bool {
	return totalBps.GreaterThan(maxSlippageBps)
}

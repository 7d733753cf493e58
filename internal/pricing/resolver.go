// Package pricing implements the constant-product curve math and the
// deterministic slippage model described in spec §4.1/§4.2. Every function
// here is pure: given the same decimal inputs it always returns the same
// decimal output, which is what makes replay bit-for-bit reproducible.
//
// Grounded on the virtual-reserve ratio and slippage-factor shape used by
// pump.fun-style bonding curve clients in the retrieval pack (see
// DESIGN.md), reimplemented in fixed-point decimal instead of float64 since
// spec §6 normatively fixes the precision of every quantity on this path.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidCurve is returned when the curve's token reserve is non-positive.
var ErrInvalidCurve = errors.New("pricing: invalid curve (non-positive reserve)")

// ErrInvalidInput is returned when a fill input is non-positive.
var ErrInvalidInput = errors.New("pricing: invalid input (non-positive amount or reserve)")

// pricePrecision is the number of decimal places carried by SpotPrice
// results, matching spec §6's 28/18 unit-price column.
const pricePrecision = 18

// SpotPrice returns y/x, the instantaneous price of one token in SOL.
func SpotPrice(vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !vTokens.IsPositive() {
		return decimal.Zero, ErrInvalidCurve
	}
	return vSol.DivRound(vTokens, pricePrecision), nil
}

// TokensOut returns the tokens received for spending solIn against the
// curve (x,y), clamped to zero if the constant-product formula would drive
// it negative.
func TokensOut(solIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !solIn.IsPositive() || !vTokens.IsPositive() || !vSol.IsPositive() {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vTokens.Sub(k.DivRound(vSol.Add(solIn), pricePrecision))
	if out.IsNegative() {
		return decimal.Zero, nil
	}
	return out, nil
}

// SolOut returns the SOL received for selling tokensIn against the curve
// (x,y), clamped to zero if the constant-product formula would drive it
// negative.
func SolOut(tokensIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !tokensIn.IsPositive() || !vTokens.IsPositive() || !vSol.IsPositive() {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vSol.Sub(k.DivRound(vTokens.Add(tokensIn), pricePrecision))
	if out.IsNegative() {
		return decimal.Zero, nil
	}
	return out, nil
}

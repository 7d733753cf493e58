package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSpotPrice(t *testing.T) {
	price, err := SpotPrice(dec("1000000000"), dec("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := dec("30").DivRound(dec("1000000000"), 18)
	if !price.Equal(want) {
		t.Errorf("got %s, want %s", price, want)
	}
}

func TestSpotPriceInvalidCurve(t *testing.T) {
	if _, err := SpotPrice(decimal.Zero, dec("30")); err != ErrInvalidCurve {
		t.Errorf("expected ErrInvalidCurve, got %v", err)
	}
}

func TestTokensOutScenarioS1(t *testing.T) {
	// spec S1: v_tokens=1e9, v_sol=30, sol_in=1.0 -> raw tokens ~= 1e9/31
	tokens, err := TokensOut(dec("1"), dec("1000000000"), dec("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := dec("1000000000").Sub(dec("30000000000").DivRound(dec("31"), pricePrecision))
	if !tokens.Equal(want) {
		t.Errorf("got %s, want %s", tokens, want)
	}
}

func TestTokensOutClampsToZero(t *testing.T) {
	// a pathologically large sol_in can't drive the formula negative given
	// positive reserves, but TokensOut must never return a negative value.
	tokens, err := TokensOut(dec("1000000"), dec("1"), dec("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.IsNegative() {
		t.Errorf("tokens out must never be negative, got %s", tokens)
	}
}

func TestSolOutInvalidInput(t *testing.T) {
	if _, err := SolOut(decimal.Zero, dec("1"), dec("1")); err != ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

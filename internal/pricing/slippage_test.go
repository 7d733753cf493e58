package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotalSlippageBpsScenarioS1(t *testing.T) {
	// spec S1: base=100bps, price_impact_factor=1.0, sol_amount=1.0, v_sol=30.0
	// expected ~433.33 bps uncapped.
	got := TotalSlippageBps(dec("1.0"), dec("30.0"), dec("100"), dec("1.0"))
	want := dec("433.3333")
	diff := got.Sub(want).Abs()
	if diff.GreaterThan(dec("0.01")) {
		t.Errorf("got %s, want ~%s", got, want)
	}
}

func TestTotalSlippageBpsNonPositiveVSol(t *testing.T) {
	got := TotalSlippageBps(dec("1.0"), decimal.Zero, dec("100"), dec("1.0"))
	if !got.Equal(dec("100")) {
		t.Errorf("expected base slippage unchanged, got %s", got)
	}
}

func TestRejectedRequiresUncappedValue(t *testing.T) {
	// total (1000) exceeds max (500): must reject using the RAW value, not
	// a value pre-clamped to max (which would always pass the check).
	if !Rejected(dec("1000"), dec("500")) {
		t.Error("expected rejection when total exceeds max")
	}
	if Rejected(dec("500"), dec("500")) {
		t.Error("exactly-at-max must not be rejected")
	}
}

func TestApplySlippageReducesAmount(t *testing.T) {
	raw := dec("100")
	actual := ApplySlippage(raw, dec("1000")) // 10%
	want := dec("90")
	if !actual.Equal(want) {
		t.Errorf("got %s, want %s", actual, want)
	}
}

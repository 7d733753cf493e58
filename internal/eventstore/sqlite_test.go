package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mirrorcurve/internal/types"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEvent(sig string, receivedAt time.Time) types.TradeEvent {
	return types.TradeEvent{
		Signature:       sig,
		Mint:            "mint1",
		Trader:          "walletA",
		Side:            types.Buy,
		TokenAmount:     decimal.NewFromInt(1000),
		SolAmount:       decimal.NewFromFloat(1.0),
		NewTokenBalance: decimal.NewFromInt(1000),
		CurveKey:        "curve1",
		VTokensPost:     decimal.NewFromInt(1000000000),
		VSolPost:        decimal.NewFromFloat(30.0),
		MarketCapSol:    decimal.NewFromFloat(30.0),
		Pool:            types.PumpCurvePool,
		ReceivedAt:      receivedAt,
		IngestedAt:      receivedAt,
	}
}

func TestInsertBatchDedupesOnSignature(t *testing.T) {
	store := newTestSQLiteStore(t)
	now := time.Now()
	events := []types.TradeEvent{sampleEvent("sig1", now), sampleEvent("sig1", now)}

	n, err := store.InsertBatch(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row inserted (duplicate ignored), got %d", n)
	}
}

func TestInsertBatchEmptyIsNoOp(t *testing.T) {
	store := newTestSQLiteStore(t)
	n, err := store.InsertBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows for empty batch, got %d", n)
	}
}

func TestStreamRangeReturnsEventsInOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Unix(1000, 0)
	events := []types.TradeEvent{
		sampleEvent("sig1", base),
		sampleEvent("sig2", base.Add(10*time.Second)),
		sampleEvent("sig3", base.Add(20*time.Second)),
	}
	if _, err := store.InsertBatch(context.Background(), events); err != nil {
		t.Fatalf("insert: %v", err)
	}

	it, err := store.StreamRange(context.Background(), base.Unix(), base.Add(15*time.Second).Unix())
	if err != nil {
		t.Fatalf("stream range: %v", err)
	}
	defer it.Close()

	var sigs []string
	for it.Next(context.Background()) {
		sigs = append(sigs, it.Event().Signature)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(sigs) != 2 || sigs[0] != "sig1" || sigs[1] != "sig2" {
		t.Errorf("got %v, want [sig1 sig2]", sigs)
	}
}

func TestStreamByTraderFiltersOtherTraders(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Unix(1000, 0)
	a := sampleEvent("sig1", base)
	b := sampleEvent("sig2", base)
	b.Trader = "walletB"
	if _, err := store.InsertBatch(context.Background(), []types.TradeEvent{a, b}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	it, err := store.StreamByTrader(context.Background(), "walletA", base.Unix()-1, base.Unix()+1)
	if err != nil {
		t.Fatalf("stream by trader: %v", err)
	}
	defer it.Close()

	count := 0
	for it.Next(context.Background()) {
		if it.Event().Trader != "walletA" {
			t.Errorf("unexpected trader in filtered stream: %s", it.Event().Trader)
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 event for walletA, got %d", count)
	}
}

package ingest

import (
	"context"
	"log"
	"os"
	"testing"

	"mirrorcurve/internal/eventstore"
	"mirrorcurve/internal/types"
)

type fakeStore struct {
	inserted []types.TradeEvent
	failNext bool
}

func (f *fakeStore) InsertBatch(_ context.Context, events []types.TradeEvent) (int, error) {
	if f.failNext {
		f.failNext = false
		return 0, context.DeadlineExceeded
	}
	f.inserted = append(f.inserted, events...)
	return len(events), nil
}
func (f *fakeStore) StreamRange(context.Context, int64, int64) (eventstore.EventIterator, error) {
	return nil, nil
}
func (f *fakeStore) StreamByTrader(context.Context, string, int64, int64) (eventstore.EventIterator, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Subscribed:   "subscribed",
		Receiving:    "receiving",
		State(99):    "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestFlushClearsBatchOnSuccess(t *testing.T) {
	store := &fakeStore{}
	queue := make(chan types.TradeEvent, 1)
	d := New(nil, store, queue, DefaultConfig(), log.New(os.Stderr, "[test] ", 0), nil)

	d.batch = []types.TradeEvent{{Mint: "mint1"}, {Mint: "mint2"}}
	d.flush(context.Background())

	if len(d.batch) != 0 {
		t.Errorf("expected batch to be cleared, len=%d", len(d.batch))
	}
	if len(store.inserted) != 2 {
		t.Errorf("expected 2 events inserted, got %d", len(store.inserted))
	}
}

func TestFlushDropsBatchOnStoreError(t *testing.T) {
	store := &fakeStore{failNext: true}
	queue := make(chan types.TradeEvent, 1)
	d := New(nil, store, queue, DefaultConfig(), log.New(os.Stderr, "[test] ", 0), nil)

	d.batch = []types.TradeEvent{{Mint: "mint1"}}
	d.flush(context.Background())

	if len(d.batch) != 0 {
		t.Errorf("expected batch to be cleared even on failure (drop semantics), len=%d", len(d.batch))
	}
	if len(store.inserted) != 0 {
		t.Errorf("expected nothing inserted on failure, got %d", len(store.inserted))
	}
}

func TestFlushNoOpOnEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	queue := make(chan types.TradeEvent, 1)
	d := New(nil, store, queue, DefaultConfig(), log.New(os.Stderr, "[test] ", 0), nil)

	d.flush(context.Background())
	if store.inserted != nil {
		t.Error("expected no insert call for an empty batch")
	}
}

// Package replay implements the Replay Driver of spec §4.11: reads a
// configured window from the Event Store, applies an optional in-memory
// wallet allowlist, tags every event Source = Replay, and enqueues. Replay
// must not run simultaneously with live ingest in the same process (the
// caller in cmd/mirrorcurve enforces this by construction — only one of
// ingest.Driver/replay.Driver is ever started).
package replay

import (
	"context"
	"log"

	"mirrorcurve/internal/eventstore"
	"mirrorcurve/internal/types"
)

// Driver reads a bounded window of historical events and replays them onto
// the queue in stored order.
type Driver struct {
	store   eventstore.Store
	queue   chan<- types.TradeEvent
	logger  *log.Logger
	allowed map[string]struct{} // empty means "all wallets"
}

// New builds a replay Driver. filterWallets empty means no filtering (spec §6).
func New(store eventstore.Store, queue chan<- types.TradeEvent, logger *log.Logger, filterWallets []string) *Driver {
	allowed := make(map[string]struct{}, len(filterWallets))
	for _, w := range filterWallets {
		allowed[w] = struct{}{}
	}
	return &Driver{store: store, queue: queue, logger: logger, allowed: allowed}
}

// Run streams [from, to] from the event store, applies the wallet
// allowlist, and enqueues each surviving event with Source = Replay. The
// queue is closed on completion or cancellation, signaling the processor to
// drain and exit (spec §4.11).
func (d *Driver) Run(ctx context.Context, from, to int64) error {
	defer close(d.queue)

	it, err := d.store.StreamRange(ctx, from, to)
	if err != nil {
		return err
	}
	defer it.Close()

	count := 0
	for it.Next(ctx) {
		event := it.Event()
		if len(d.allowed) > 0 {
			if _, ok := d.allowed[event.Trader]; !ok {
				continue
			}
		}
		event.Source = types.SourceReplay

		select {
		case d.queue <- event:
			count++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	d.logger.Printf("replay complete: %d events enqueued", count)
	return nil
}

// Package ingest runs the live feed state machine of spec §4.10:
// Disconnected -> Connecting -> Subscribed -> Receiving, with any state
// transitioning to Disconnected on error. Batch-flush timing (size or
// interval, whichever first) is grounded on the teacher's
// internal/database/write_queue.go ticker-driven flush loop, adapted from
// a retry queue to a size/time dual-trigger batch accumulator.
package ingest

import (
	"context"
	"log"
	"time"

	"mirrorcurve/internal/backoff"
	"mirrorcurve/internal/eventstore"
	"mirrorcurve/internal/feed"
	"mirrorcurve/internal/types"
)

// State is one of the feed connection's lifecycle states (spec §4.10).
type State int

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Receiving
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Receiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Config parameterizes the batch-flush policy (spec §4.10 defaults).
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig matches spec.md's stated defaults (batch 50, 100ms).
func DefaultConfig() Config {
	return Config{BatchSize: 50, FlushInterval: 100 * time.Millisecond}
}

// Driver runs the state machine, appending each accepted event to both the
// outbound queue and a local batch flushed to the event store.
type Driver struct {
	feed    *feed.Client
	store   eventstore.Store
	queue   chan<- types.TradeEvent
	cfg     Config
	logger  *log.Logger
	wallets []string
	breaker *backoff.CircuitBreaker

	state State
	batch []types.TradeEvent
}

// New builds a Driver that reads from feedClient, writes accepted events to
// queue, and flushes batches to store. Reconnect attempts are wrapped in a
// circuit breaker so a persistently down upstream stops being dialed at all
// for RecoveryTimeout instead of being hammered at the backoff curve's
// capped interval forever.
func New(feedClient *feed.Client, store eventstore.Store, queue chan<- types.TradeEvent, cfg Config, logger *log.Logger, trackedWallets []string) *Driver {
	return &Driver{
		feed:    feedClient,
		store:   store,
		queue:   queue,
		cfg:     cfg,
		logger:  logger,
		wallets: trackedWallets,
		breaker: backoff.NewCircuitBreaker(backoff.DefaultCircuitBreakerConfig("feed-reconnect")),
		state:   Disconnected,
	}
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Run drives the state machine until ctx is canceled, then flushes any
// pending batch and closes the queue (spec §4.10 shutdown behavior).
func (d *Driver) Run(ctx context.Context) {
	defer func() {
		d.flush(context.Background())
		close(d.queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		d.state = Connecting
		if err := d.breaker.Call(func() error { return d.feed.ConnectAndSubscribe(ctx, d.wallets) }); err != nil {
			d.logger.Printf("connect failed (circuit %s): %v", d.breaker.State(), err)
			d.state = Disconnected
			if !d.sleepBackoff(ctx) {
				return
			}
			continue
		}
		d.state = Subscribed

		if !d.receiveLoop(ctx) {
			return
		}
		d.state = Disconnected
	}
}

// receiveLoop runs the Receiving state until a transport error, returning
// false if ctx was canceled (caller should stop entirely).
func (d *Driver) receiveLoop(ctx context.Context) bool {
	d.state = Receiving
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			d.flush(ctx)
		default:
		}

		event, ok, err := d.feed.Receive()
		if err != nil {
			d.flush(ctx)
			d.feed.Close()
			if !d.sleepBackoff(ctx) {
				return false
			}
			return true
		}
		if !ok {
			continue
		}

		select {
		case d.queue <- event:
		case <-ctx.Done():
			return false
		}

		d.batch = append(d.batch, event)
		if len(d.batch) >= d.cfg.BatchSize {
			d.flush(ctx)
		}
	}
}

func (d *Driver) sleepBackoff(ctx context.Context) bool {
	delay := d.feed.NextBackoffDelay()
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// flush writes the pending batch to the event store. A flush failure drops
// the batch (logged) rather than blocking the pipeline (spec §4.10).
func (d *Driver) flush(ctx context.Context) {
	if len(d.batch) == 0 {
		return
	}
	n, err := d.store.InsertBatch(ctx, d.batch)
	if err != nil {
		d.logger.Printf("batch flush failed, dropping %d events: %v", len(d.batch), err)
	} else {
		d.logger.Printf("flushed batch: %d/%d inserted", n, len(d.batch))
	}
	d.batch = d.batch[:0]
}

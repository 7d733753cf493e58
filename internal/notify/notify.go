// Package notify implements the fire-and-forget outbound notification seam
// of spec §6: a channel that receives portfolio events but must never block
// portfolio mutation or the queue. RedisNotifier uses redis/go-redis/v9
// pub/sub; NoopNotifier is the default when no outbound channel is
// configured.
package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"mirrorcurve/internal/types"
)

// PortfolioEvent is what the processor publishes after each fill.
type PortfolioEvent struct {
	Trade types.SimulatedTrade
}

// Notifier is the fire-and-forget publish seam. Notify must never block the
// caller on slow or unavailable downstream consumers.
type Notifier interface {
	Notify(event PortfolioEvent)
}

// NoopNotifier discards every event; the default when no channel is
// configured (spec §6: "out of scope for the core").
type NoopNotifier struct{}

func (NoopNotifier) Notify(PortfolioEvent) {}

// RedisNotifier publishes each PortfolioEvent as JSON to a fixed pub/sub
// channel, from its own goroutine so a slow or down Redis never stalls the
// processor.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	events  chan PortfolioEvent
	logger  *log.Logger
}

// NewRedisNotifier starts a background publisher against client on channel.
// The internal buffer is bounded; a full buffer drops the event (logged)
// rather than applying back-pressure to the processor, since spec §6
// forbids this seam from ever blocking portfolio mutation.
func NewRedisNotifier(client *redis.Client, channel string, logger *log.Logger) *RedisNotifier {
	n := &RedisNotifier{
		client:  client,
		channel: channel,
		events:  make(chan PortfolioEvent, 256),
		logger:  logger,
	}
	go n.run()
	return n
}

func (n *RedisNotifier) Notify(event PortfolioEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Printf("notify: buffer full, dropping event for %s", event.Trade.Mint)
	}
}

func (n *RedisNotifier) run() {
	ctx := context.Background()
	for event := range n.events {
		payload, err := json.Marshal(event)
		if err != nil {
			n.logger.Printf("notify: marshal error: %v", err)
			continue
		}
		if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
			n.logger.Printf("notify: publish error: %v", err)
		}
	}
}

// Close stops the background publisher.
func (n *RedisNotifier) Close() {
	close(n.events)
}

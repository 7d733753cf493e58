// Package feed implements the upstream trade feed client of spec §4.9 over
// gorilla/websocket (already a teacher dependency). Read-loop shape
// (deadline + pong handler) grounded on the teacher's
// internal/websocket/hub.go Client.ReadPump; reconnect/backoff composition
// grounded on internal/backoff (itself adapted from the teacher's
// internal/concurrency/backoff.go).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"mirrorcurve/internal/backoff"
	"mirrorcurve/internal/dedup"
	"mirrorcurve/internal/types"
)

// subscribeRequest is the client->server subscription payload of spec §6.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

// rawTrade is the upstream wire shape; only the fields spec §6 names are
// decoded, unknown fields are tolerated by omission.
type rawTrade struct {
	Signature            string          `json:"signature"`
	Mint                  string          `json:"mint"`
	TraderPublicKey       string          `json:"traderPublicKey"`
	TxType                string          `json:"txType"`
	TokenAmount           decimal.Decimal `json:"tokenAmount"`
	SolAmount             decimal.Decimal `json:"solAmount"`
	NewTokenBalance       decimal.Decimal `json:"newTokenBalance"`
	BondingCurveKey       string          `json:"bondingCurveKey"`
	VTokensInBondingCurve decimal.Decimal `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    decimal.Decimal `json:"vSolInBondingCurve"`
	MarketCapSol          decimal.Decimal `json:"marketCapSol"`
	Pool                  string          `json:"pool"`
}

func (r rawTrade) valid() bool {
	return r.Signature != "" && r.Mint != "" && r.TraderPublicKey != "" &&
		r.TxType != "" && r.BondingCurveKey != ""
}

// Client is the upstream feed connection (spec §4.9 contract).
type Client struct {
	url        string
	dialer     *websocket.Dialer
	backoff    *backoff.Backoff
	ring       *dedup.Ring
	conn       *websocket.Conn
	readBuffer int
}

// New builds a feed client against url, using ring for signature dedup and
// backoffCfg for the reconnect policy.
func New(url string, backoffCfg backoff.Config, ring *dedup.Ring, readBuffer int) *Client {
	return &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		backoff:    backoff.New(backoffCfg),
		ring:       ring,
		readBuffer: readBuffer,
	}
}

// ConnectAndSubscribe dials the feed and subscribes to trackedWallets in a
// single payload (spec §4.9).
func (c *Client) ConnectAndSubscribe(ctx context.Context, trackedWallets []string) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	req := subscribeRequest{Method: "subscribeAccountTrade", Keys: trackedWallets}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("feed: subscribe: %w", err)
	}

	c.conn = conn
	c.backoff.Reset()
	return nil
}

// Receive reads one upstream message, decodes and validates it, checks the
// dedup ring, and maps it to a TradeEvent. Returns (zero, false, nil) for an
// undecodable or invalid message or a duplicate, and the caller reads the
// next message; a transport error, or a call without a connection, is
// returned as a non-nil error, on which the caller reconnects (spec §4.9).
func (c *Client) Receive() (types.TradeEvent, bool, error) {
	if c.conn == nil {
		return types.TradeEvent{}, false, fmt.Errorf("feed: not connected")
	}

	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		return types.TradeEvent{}, false, err
	}

	var raw rawTrade
	if err := json.Unmarshal(payload, &raw); err != nil {
		return types.TradeEvent{}, false, nil
	}
	if !raw.valid() {
		return types.TradeEvent{}, false, nil
	}
	if !c.ring.Add(raw.Signature) {
		return types.TradeEvent{}, false, nil
	}

	event := types.TradeEvent{
		Signature:       raw.Signature,
		Mint:            raw.Mint,
		Trader:          raw.TraderPublicKey,
		Side:            types.ParseSide(raw.TxType),
		TokenAmount:     raw.TokenAmount,
		SolAmount:       raw.SolAmount,
		NewTokenBalance: raw.NewTokenBalance,
		CurveKey:        raw.BondingCurveKey,
		VTokensPost:     raw.VTokensInBondingCurve,
		VSolPost:        raw.VSolInBondingCurve,
		MarketCapSol:    raw.MarketCapSol,
		Pool:            raw.Pool,
		ReceivedAt:      time.Now().UTC(),
		Source:          types.SourceLive,
	}
	return event, true, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// NextBackoffDelay returns the delay to sleep before the next reconnect
// attempt (spec §4.9).
func (c *Client) NextBackoffDelay() time.Duration {
	return c.backoff.NextDelay()
}

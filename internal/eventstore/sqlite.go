package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"mirrorcurve/internal/types"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS trade_events (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	signature          TEXT NOT NULL UNIQUE,
	mint               TEXT NOT NULL,
	trader             TEXT NOT NULL,
	side               TEXT NOT NULL,
	token_amount       TEXT NOT NULL,
	sol_amount         TEXT NOT NULL,
	new_token_balance  TEXT NOT NULL,
	curve_key          TEXT NOT NULL,
	v_tokens_post      TEXT NOT NULL,
	v_sol_post         TEXT NOT NULL,
	market_cap_sol     TEXT NOT NULL,
	pool               TEXT NOT NULL DEFAULT '',
	received_at        INTEGER NOT NULL,
	ingested_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS trade_events_trader_received_at_idx ON trade_events (trader, received_at);
CREATE INDEX IF NOT EXISTS trade_events_mint_idx ON trade_events (mint);
`

// SQLiteStore is the local-development/test Store backend: no COPY
// protocol is available in SQLite, so InsertBatch falls back to a single
// batched transaction of INSERT OR IGNORE statements (spec §4.6, Postgres
// backend comment for the scope of the "10x faster" requirement).
type SQLiteStore struct {
	db       *sql.DB
	pageSize int
}

// NewSQLiteStore opens path (or ":memory:") and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver serializes writers anyway

	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, pageSize: 500}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) InsertBatch(ctx context.Context, events []types.TradeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("eventstore: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO trade_events (
			signature, mint, trader, side, token_amount, sol_amount,
			new_token_balance, curve_key, v_tokens_post, v_sol_post,
			market_cap_sol, pool, received_at, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("eventstore: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		res, err := stmt.ExecContext(ctx,
			e.Signature, e.Mint, e.Trader, string(e.Side),
			e.TokenAmount.String(), e.SolAmount.String(), e.NewTokenBalance.String(),
			e.CurveKey, e.VTokensPost.String(), e.VSolPost.String(), e.MarketCapSol.String(),
			e.Pool, e.ReceivedAt.Unix(), e.IngestedAt.Unix(),
		)
		if err != nil {
			return 0, fmt.Errorf("eventstore: insert row: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("eventstore: commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) StreamRange(ctx context.Context, from, to int64) (EventIterator, error) {
	return s.streamQuery(ctx, `
		SELECT id, signature, mint, trader, side, token_amount, sol_amount,
		       new_token_balance, curve_key, v_tokens_post, v_sol_post,
		       market_cap_sol, pool, received_at, ingested_at
		FROM trade_events
		WHERE received_at >= ? AND received_at <= ?
		ORDER BY received_at, id
	`, from, to)
}

func (s *SQLiteStore) StreamByTrader(ctx context.Context, trader string, from, to int64) (EventIterator, error) {
	return s.streamQuery(ctx, `
		SELECT id, signature, mint, trader, side, token_amount, sol_amount,
		       new_token_balance, curve_key, v_tokens_post, v_sol_post,
		       market_cap_sol, pool, received_at, ingested_at
		FROM trade_events
		WHERE trader = ? AND received_at >= ? AND received_at <= ?
		ORDER BY received_at, id
	`, trader, from, to)
}

// sqliteRowsIterator wraps a single *sql.Rows: SQLite has no server-side
// FETCH FORWARD cursor, but Go's database/sql streams rows off the wire
// incrementally already, so a straight rows.Next() loop satisfies the same
// "do not materialize the full range" requirement for this backend.
type sqliteRowsIterator struct {
	rows    *sql.Rows
	current types.TradeEvent
	err     error
}

func (s *SQLiteStore) streamQuery(ctx context.Context, query string, args ...interface{}) (EventIterator, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query: %w", err)
	}
	return &sqliteRowsIterator{rows: rows}, nil
}

func (it *sqliteRowsIterator) Next(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	default:
	}

	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	var (
		e                                             types.TradeEvent
		side, tokenAmount, solAmount, newTokenBalance string
		vTokensPost, vSolPost, marketCapSol           string
		receivedAt, ingestedAt                        int64
	)
	if err := it.rows.Scan(
		&e.ID, &e.Signature, &e.Mint, &e.Trader, &side,
		&tokenAmount, &solAmount, &newTokenBalance, &e.CurveKey,
		&vTokensPost, &vSolPost, &marketCapSol, &e.Pool,
		&receivedAt, &ingestedAt,
	); err != nil {
		it.err = err
		return false
	}

	e.Side = types.ParseSide(side)
	e.TokenAmount = mustDecimal(tokenAmount)
	e.SolAmount = mustDecimal(solAmount)
	e.NewTokenBalance = mustDecimal(newTokenBalance)
	e.VTokensPost = mustDecimal(vTokensPost)
	e.VSolPost = mustDecimal(vSolPost)
	e.MarketCapSol = mustDecimal(marketCapSol)
	e.ReceivedAt = time.Unix(receivedAt, 0).UTC()
	e.IngestedAt = time.Unix(ingestedAt, 0).UTC()
	e.Source = types.SourceReplay
	it.current = e
	return true
}

func (it *sqliteRowsIterator) Event() types.TradeEvent { return it.current }
func (it *sqliteRowsIterator) Err() error               { return it.err }
func (it *sqliteRowsIterator) Close() error             { return it.rows.Close() }

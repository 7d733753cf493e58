package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"mirrorcurve/internal/types"
)

// schemaSQL creates the permanent table and the indexes spec §4.6 requires.
// NewPostgresStore runs this once at startup; it is idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS trade_events (
	id                 BIGSERIAL PRIMARY KEY,
	signature          TEXT NOT NULL,
	mint               TEXT NOT NULL,
	trader             TEXT NOT NULL,
	side               TEXT NOT NULL,
	token_amount       NUMERIC(28,12) NOT NULL,
	sol_amount         NUMERIC(18,9) NOT NULL,
	new_token_balance  NUMERIC(28,12) NOT NULL,
	curve_key          TEXT NOT NULL,
	v_tokens_post      NUMERIC(28,12) NOT NULL,
	v_sol_post         NUMERIC(18,9) NOT NULL,
	market_cap_sol     NUMERIC(18,9) NOT NULL,
	pool               TEXT NOT NULL DEFAULT '',
	received_at        TIMESTAMPTZ NOT NULL,
	ingested_at        TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS trade_events_signature_idx ON trade_events (signature);
CREATE INDEX IF NOT EXISTS trade_events_trader_received_at_idx ON trade_events (trader, received_at);
CREATE INDEX IF NOT EXISTS trade_events_mint_idx ON trade_events (mint);
`

// PostgresStore is the production Store backend: lib/pq COPY protocol into
// a per-batch temporary scratch table (temporary tables are not WAL-logged),
// then an INSERT...SELECT...ON CONFLICT DO NOTHING merge into the permanent
// table (spec §4.6).
type PostgresStore struct {
	db        *sql.DB
	pageSize  int
}

// NewPostgresStore opens dsn and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: schema: %w", err)
	}

	return &PostgresStore{db: db, pageSize: 500}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// InsertBatch implements Store.InsertBatch via the COPY + scratch-table
// protocol. The scratch table is dropped when the transaction commits.
func (s *PostgresStore) InsertBatch(ctx context.Context, events []types.TradeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventstore: conn: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("eventstore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TEMP TABLE trade_events_scratch (LIKE trade_events INCLUDING DEFAULTS) ON COMMIT DROP;
	`); err != nil {
		return 0, fmt.Errorf("eventstore: scratch table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"trade_events_scratch",
		"signature", "mint", "trader", "side", "token_amount", "sol_amount",
		"new_token_balance", "curve_key", "v_tokens_post", "v_sol_post",
		"market_cap_sol", "pool", "received_at", "ingested_at",
	))
	if err != nil {
		return 0, fmt.Errorf("eventstore: copy prepare: %w", err)
	}

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.Signature, e.Mint, e.Trader, string(e.Side),
			numericString(e.TokenAmount), numericString(e.SolAmount),
			numericString(e.NewTokenBalance), e.CurveKey,
			numericString(e.VTokensPost), numericString(e.VSolPost),
			numericString(e.MarketCapSol), e.Pool,
			e.ReceivedAt, e.IngestedAt,
		); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("eventstore: copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("eventstore: copy flush: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("eventstore: copy close: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trade_events (
			signature, mint, trader, side, token_amount, sol_amount,
			new_token_balance, curve_key, v_tokens_post, v_sol_post,
			market_cap_sol, pool, received_at, ingested_at
		)
		SELECT
			signature, mint, trader, side, token_amount, sol_amount,
			new_token_balance, curve_key, v_tokens_post, v_sol_post,
			market_cap_sol, pool, received_at, ingested_at
		FROM trade_events_scratch
		ON CONFLICT (signature) DO NOTHING;
	`)
	if err != nil {
		return 0, fmt.Errorf("eventstore: merge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("eventstore: commit: %w", err)
	}

	inserted, _ := res.RowsAffected()
	return int(inserted), nil
}

func numericString(d decimal.Decimal) string {
	return d.String()
}

// StreamRange implements Store.StreamRange with a server-side cursor.
func (s *PostgresStore) StreamRange(ctx context.Context, from, to int64) (EventIterator, error) {
	return s.streamQuery(ctx, `
		SELECT id, signature, mint, trader, side, token_amount, sol_amount,
		       new_token_balance, curve_key, v_tokens_post, v_sol_post,
		       market_cap_sol, pool, received_at, ingested_at
		FROM trade_events
		WHERE received_at >= to_timestamp($1) AND received_at <= to_timestamp($2)
		ORDER BY received_at, id
	`, from, to)
}

// StreamByTrader implements Store.StreamByTrader with a server-side cursor.
func (s *PostgresStore) StreamByTrader(ctx context.Context, trader string, from, to int64) (EventIterator, error) {
	return s.streamQuery(ctx, `
		SELECT id, signature, mint, trader, side, token_amount, sol_amount,
		       new_token_balance, curve_key, v_tokens_post, v_sol_post,
		       market_cap_sol, pool, received_at, ingested_at
		FROM trade_events
		WHERE trader = $1 AND received_at >= to_timestamp($2) AND received_at <= to_timestamp($3)
		ORDER BY received_at, id
	`, trader, from, to)
}

func (s *PostgresStore) streamQuery(ctx context.Context, query string, args ...interface{}) (EventIterator, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventstore: conn: %w", err)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventstore: begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DECLARE mirrorcurve_cursor NO SCROLL CURSOR FOR "+query, args...); err != nil {
		tx.Rollback()
		conn.Close()
		return nil, fmt.Errorf("eventstore: declare cursor: %w", err)
	}

	return &cursorIterator{
		ctx:      ctx,
		conn:     conn,
		tx:       tx,
		pageSize: s.pageSize,
	}, nil
}

// cursorIterator fetches rows in pages from a server-side cursor, never
// materializing the full range (spec §4.6).
type cursorIterator struct {
	ctx      context.Context
	conn     *sql.Conn
	tx       *sql.Tx
	pageSize int

	buf     []types.TradeEvent
	pos     int
	done    bool
	err     error
	current types.TradeEvent
}

func (it *cursorIterator) Next(ctx context.Context) bool {
	if it.err != nil || (it.done && it.pos >= len(it.buf)) {
		return false
	}

	if it.pos >= len(it.buf) {
		if it.done {
			return false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return false
		}
		if len(it.buf) == 0 {
			it.done = true
			return false
		}
	}

	it.current = it.buf[it.pos]
	it.pos++
	return true
}

func (it *cursorIterator) fetchPage(ctx context.Context) error {
	rows, err := it.tx.QueryContext(ctx, fmt.Sprintf("FETCH FORWARD %d FROM mirrorcurve_cursor", it.pageSize))
	if err != nil {
		return err
	}
	defer rows.Close()

	it.buf = it.buf[:0]
	it.pos = 0

	for rows.Next() {
		var (
			e                                                     types.TradeEvent
			side, tokenAmount, solAmount, newTokenBalance         string
			vTokensPost, vSolPost, marketCapSol                   string
		)
		if err := rows.Scan(
			&e.ID, &e.Signature, &e.Mint, &e.Trader, &side,
			&tokenAmount, &solAmount, &newTokenBalance, &e.CurveKey,
			&vTokensPost, &vSolPost, &marketCapSol, &e.Pool,
			&e.ReceivedAt, &e.IngestedAt,
		); err != nil {
			return err
		}
		e.Side = types.ParseSide(side)
		e.TokenAmount = mustDecimal(tokenAmount)
		e.SolAmount = mustDecimal(solAmount)
		e.NewTokenBalance = mustDecimal(newTokenBalance)
		e.VTokensPost = mustDecimal(vTokensPost)
		e.VSolPost = mustDecimal(vSolPost)
		e.MarketCapSol = mustDecimal(marketCapSol)
		e.Source = types.SourceReplay
		it.buf = append(it.buf, e)
	}
	if len(it.buf) < it.pageSize {
		it.done = true
	}
	return rows.Err()
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (it *cursorIterator) Event() types.TradeEvent { return it.current }
func (it *cursorIterator) Err() error               { return it.err }

func (it *cursorIterator) Close() error {
	it.tx.ExecContext(it.ctx, "CLOSE mirrorcurve_cursor")
	err := it.tx.Rollback()
	it.conn.Close()
	return err
}

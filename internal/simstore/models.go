// Package simstore persists SimulatedTrade, SimulationSession, and
// PerformanceSnapshot records (spec §4.7) over gorm, matching the
// teacher's cmd/ares/main.go connection setup (PrepareStmt,
// SkipDefaultTransaction, pooled *sql.DB). Every write is a single-row
// insert or update; no explicit transactions are used.
package simstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// tradeRow is the gorm model backing SimulatedTrade. Decimal columns are
// stored as strings to preserve the normative precision of spec §6 — gorm's
// default numeric mapping would round-trip through float64.
type tradeRow struct {
	ID                 int64 `gorm:"primaryKey"`
	SourceTradeEventID int64
	SessionID          string `gorm:"index"`
	Mint               string `gorm:"index"`
	Side               string
	SolAmount          string
	TokenAmount        string
	SimulatedPrice     string
	SlippageBps        string
	DelayMs            int64
	ExecutedAt         time.Time `gorm:"index"`
	VTokensAtExecution string
	VSolAtExecution    string
	RealizedPnL        *string
}

func (tradeRow) TableName() string { return "simulated_trades" }

type sessionRow struct {
	ID                string `gorm:"primaryKey"`
	StartedAt         time.Time
	EndedAt           *time.Time
	Mode              string
	ConfigJSON        string
	InitialSolBalance string
	FinalSolBalance   *string
}

func (sessionRow) TableName() string { return "simulation_sessions" }

type snapshotRow struct {
	ID                 int64  `gorm:"primaryKey"`
	SessionID          string `gorm:"index"`
	TakenAt            time.Time
	TotalTrades        int
	WinCount           int
	LossCount          int
	WinRatePercent     string
	AvgRoiPercent      string
	RealizedPnLSol     string
	UnrealizedPnLSol   string
	MaxDrawdownPercent string
	SolBalance         string
	TotalValueSol      string
	PositionsOpen      int
	LargestPositionSol string
}

func (snapshotRow) TableName() string { return "performance_snapshots" }

func decOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decPtr(d decimal.Decimal) string { return d.String() }

func optDecPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func optDecFromPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := decOrZero(*s)
	return &d
}

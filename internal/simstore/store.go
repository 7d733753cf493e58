package simstore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"mirrorcurve/internal/types"
)

// Store is the unit-granular persistence contract of spec §4.7: ordinary
// insert/update, no batching required.
type Store struct {
	db *gorm.DB
}

// New wraps an already-opened gorm.DB (Postgres or sqlite, per the dial
// helpers in dial.go) and ensures the simstore tables exist.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&tradeRow{}, &sessionRow{}, &snapshotRow{}); err != nil {
		return nil, fmt.Errorf("simstore: automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertTrade persists one SimulatedTrade.
func (s *Store) InsertTrade(trade types.SimulatedTrade) error {
	row := tradeRow{
		SourceTradeEventID: trade.SourceTradeEventID,
		SessionID:          trade.SessionID,
		Mint:               trade.Mint,
		Side:               string(trade.Side),
		SolAmount:          decPtr(trade.SolAmount),
		TokenAmount:        decPtr(trade.TokenAmount),
		SimulatedPrice:     decPtr(trade.SimulatedPrice),
		SlippageBps:        decPtr(trade.SlippageBps),
		DelayMs:            trade.DelayMs,
		ExecutedAt:         trade.ExecutedAt,
		VTokensAtExecution: decPtr(trade.VTokensAtExecution),
		VSolAtExecution:    decPtr(trade.VSolAtExecution),
		RealizedPnL:        optDecPtr(trade.RealizedPnL),
	}
	return s.db.Create(&row).Error
}

// CreateSession persists a new SimulationSession.
func (s *Store) CreateSession(session types.SimulationSession) error {
	row := sessionRow{
		ID:                session.ID,
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
		Mode:              string(session.Mode),
		ConfigJSON:        session.ConfigJSON,
		InitialSolBalance: decPtr(session.InitialSolBalance),
		FinalSolBalance:   optDecPtr(session.FinalSolBalance),
	}
	return s.db.Create(&row).Error
}

// CloseSession stamps endedAt/finalBalance on an existing session
// (spec §3 SimulationSession "mutable for close-out only").
func (s *Store) CloseSession(sessionID string, endedAt time.Time, finalBalance types.SimulationSession) error {
	finalStr := decPtr(*finalBalance.FinalSolBalance)
	return s.db.Model(&sessionRow{}).Where("id = ?", sessionID).Updates(map[string]interface{}{
		"ended_at":          endedAt,
		"final_sol_balance": finalStr,
	}).Error
}

// InsertSnapshot persists a PerformanceSnapshot.
func (s *Store) InsertSnapshot(snap types.PerformanceSnapshot) error {
	row := snapshotRow{
		SessionID:          snap.SessionID,
		TakenAt:            snap.TakenAt,
		TotalTrades:        snap.TotalTrades,
		WinCount:           snap.WinCount,
		LossCount:          snap.LossCount,
		WinRatePercent:     decPtr(snap.WinRatePercent),
		AvgRoiPercent:      decPtr(snap.AvgRoiPercent),
		RealizedPnLSol:     decPtr(snap.RealizedPnLSol),
		UnrealizedPnLSol:   decPtr(snap.UnrealizedPnLSol),
		MaxDrawdownPercent: decPtr(snap.MaxDrawdownPercent),
		SolBalance:         decPtr(snap.SolBalance),
		TotalValueSol:      decPtr(snap.TotalValueSol),
		PositionsOpen:      snap.PositionsOpen,
		LargestPositionSol: decPtr(snap.LargestPositionSol),
	}
	return s.db.Create(&row).Error
}

// LatestSnapshot returns the most recent snapshot for sessionID, used by the
// HTTP status surface's /snapshot endpoint.
func (s *Store) LatestSnapshot(sessionID string) (types.PerformanceSnapshot, bool, error) {
	var row snapshotRow
	err := s.db.Where("session_id = ?", sessionID).Order("taken_at DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return types.PerformanceSnapshot{}, false, nil
	}
	if err != nil {
		return types.PerformanceSnapshot{}, false, err
	}

	return types.PerformanceSnapshot{
		ID:                 row.ID,
		SessionID:          row.SessionID,
		TakenAt:            row.TakenAt,
		TotalTrades:        row.TotalTrades,
		WinCount:           row.WinCount,
		LossCount:          row.LossCount,
		WinRatePercent:     decOrZero(row.WinRatePercent),
		AvgRoiPercent:      decOrZero(row.AvgRoiPercent),
		RealizedPnLSol:     decOrZero(row.RealizedPnLSol),
		UnrealizedPnLSol:   decOrZero(row.UnrealizedPnLSol),
		MaxDrawdownPercent: decOrZero(row.MaxDrawdownPercent),
		SolBalance:         decOrZero(row.SolBalance),
		TotalValueSol:      decOrZero(row.TotalValueSol),
		PositionsOpen:      row.PositionsOpen,
		LargestPositionSol: decOrZero(row.LargestPositionSol),
	}, true, nil
}

package recorder

import (
	"context"
	"time"

	"PortfolioSentinel/internal/model"
)

// AlertRecord is a fired alert as stored in history.
type AlertRecord struct {
	ID        string          `json:"id"`
	Kind      model.AlertKind `json:"kind"`
	Name      string          `json:"name"`
	Ticker    string          `json:"ticker"`
	Price     float64         `json:"price"`
	Threshold float64         `json:"threshold"`
	At        time.Time       `json:"at"`
}

// SnapshotRecord is one stored portfolio valuation.
type SnapshotRecord struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"` // job that produced it: open, check, close, manual
	CurrentValue    float64   `json:"current_value"`
	CostValue       float64   `json:"cost_value"`
	UnrealizedPL    float64   `json:"unrealized_pl"`
	UnrealizedPLPct float64   `json:"unrealized_pl_pct"`
	DayChange       float64   `json:"day_change"`
	DayChangePct    float64   `json:"day_change_pct"`
	Unpriced        int       `json:"unpriced"`
	At              time.Time `json:"at"`
}

// Recorder persists valuation and alert history.
type Recorder interface {
	RecordSnapshot(ctx context.Context, label string, snap *model.PortfolioSnapshot) (id string, err error)
	RecordAlert(ctx context.Context, evt model.AlertEvent, at time.Time) error
	AlertFiredSince(ctx context.Context, ticker string, kind model.AlertKind, since time.Time) (bool, error)
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	Close() error
}

package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"PortfolioSentinel/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id                TEXT PRIMARY KEY,
			timestamp         INTEGER NOT NULL,
			label             TEXT,
			current_value     REAL,
			cost_value        REAL,
			unrealized_pl     REAL,
			unrealized_pl_pct REAL,
			day_change        REAL,
			day_change_pct    REAL,
			unpriced          INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON portfolio_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS holding_snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id  TEXT NOT NULL REFERENCES portfolio_snapshots(id),
			ticker       TEXT NOT NULL,
			name         TEXT,
			quantity     REAL,
			cost_basis   REAL,
			price        REAL,
			price_ok     INTEGER,
			market_value REAL,
			unrealized_pl REAL,
			day_change   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_holding_snap ON holding_snapshots(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_holding_ticker ON holding_snapshots(ticker)`,

		`CREATE TABLE IF NOT EXISTS alert_events (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			name       TEXT,
			price      REAL,
			threshold  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_ticker_ts ON alert_events(ticker, kind, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordSnapshot stores the portfolio totals and one row per holding in a
// single transaction.
func (r *SQLiteRecorder) RecordSnapshot(ctx context.Context, label string, snap *model.PortfolioSnapshot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	at := snap.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO portfolio_snapshots
		(id, timestamp, label, current_value, cost_value, unrealized_pl, unrealized_pl_pct,
		 day_change, day_change_pct, unpriced)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		id, at.Unix(), label, snap.CurrentValue, snap.CostValue, snap.UnrealizedPL,
		snap.UnrealizedPLPct, snap.DayChange, snap.DayChangePct, len(snap.Unpriced),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	for _, m := range snap.Holdings {
		_, err = tx.ExecContext(ctx, `INSERT INTO holding_snapshots
			(snapshot_id, ticker, name, quantity, cost_basis, price, price_ok,
			 market_value, unrealized_pl, day_change)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			id, m.Holding.Ticker, m.Holding.Name, m.Holding.Quantity, m.Holding.CostBasis,
			m.Price, m.PriceOK, m.MarketValue, m.UnrealizedPL, m.DayChange,
		)
		if err != nil {
			return "", fmt.Errorf("insert holding %s: %w", m.Holding.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (r *SQLiteRecorder) RecordAlert(ctx context.Context, evt model.AlertEvent, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_events
		(id, timestamp, kind, ticker, name, price, threshold)
		VALUES (?,?,?,?,?,?,?)`,
		uuid.NewString(), at.Unix(), string(evt.Kind), evt.Ticker, evt.Name, evt.Price, evt.Threshold,
	)
	return err
}

// AlertFiredSince reports whether an alert of this kind was recorded for
// the ticker at or after since.
func (r *SQLiteRecorder) AlertFiredSince(ctx context.Context, ticker string, kind model.AlertKind, since time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_events
		WHERE ticker = ? AND kind = ? AND timestamp >= ?`,
		ticker, string(kind), since.Unix(),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentAlerts returns the latest alerts, newest first.
func (r *SQLiteRecorder) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, kind, ticker, name, price, threshold
		FROM alert_events ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var (
			a    AlertRecord
			ts   int64
			kind string
			name sql.NullString
		)
		if err := rows.Scan(&a.ID, &ts, &kind, &a.Ticker, &name, &a.Price, &a.Threshold); err != nil {
			return nil, err
		}
		a.Kind = model.AlertKind(kind)
		a.Name = name.String
		a.At = time.Unix(ts, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentSnapshots returns the latest portfolio totals, newest first.
func (r *SQLiteRecorder) RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, timestamp, label, current_value, cost_value,
		unrealized_pl, unrealized_pl_pct, day_change, day_change_pct, unpriced
		FROM portfolio_snapshots ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			s     SnapshotRecord
			ts    int64
			label sql.NullString
		)
		if err := rows.Scan(&s.ID, &ts, &label, &s.CurrentValue, &s.CostValue,
			&s.UnrealizedPL, &s.UnrealizedPLPct, &s.DayChange, &s.DayChangePct, &s.Unpriced); err != nil {
			return nil, err
		}
		s.Label = label.String
		s.At = time.Unix(ts, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed record sink.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Completed orders, append-only
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		broker_id TEXT,
		instrument TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		role TEXT NOT NULL,
		style TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		filled_qty INTEGER NOT NULL,
		average_price REAL NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_instrument ON orders(instrument, timestamp);

	-- Day PnL snapshots, append-only
	CREATE TABLE IF NOT EXISTS pnl_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day_key TEXT NOT NULL,
		pnl REAL NOT NULL,
		realized REAL NOT NULL,
		unrealized REAL NOT NULL,
		mode TEXT NOT NULL,
		terminal TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pnl_day ON pnl_snapshots(day_key, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordOrder appends one completed order row.
func (s *SQLiteStore) RecordOrder(ctx context.Context, rec OrderRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, broker_id, instrument, exchange, side, role, style,
			quantity, filled_qty, average_price, status, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.BrokerID, rec.Instrument, rec.Exchange, rec.Side, rec.Role,
		rec.Style, rec.Quantity, rec.FilledQty, rec.AveragePrice, rec.Status,
		rec.Reason, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("recording order %s: %w", rec.OrderID, err)
	}
	return nil
}

// RecordPnLSnapshot appends one day-PnL observation.
func (s *SQLiteStore) RecordPnLSnapshot(ctx context.Context, snap PnLSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pnl_snapshots (day_key, pnl, realized, unrealized, mode, terminal, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.DayKey, snap.PnL, snap.Realized, snap.Unrealized, snap.Mode,
		snap.Terminal, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("recording pnl snapshot for %s: %w", snap.DayKey, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

// NopStore discards all records. Used when persistence is disabled.
type NopStore struct{}

func (NopStore) RecordOrder(ctx context.Context, rec OrderRecord) error        { return nil }
func (NopStore) RecordPnLSnapshot(ctx context.Context, snap PnLSnapshot) error { return nil }
func (NopStore) Close() error                                                  { return nil }

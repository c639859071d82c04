// Package journal is an append-only SQLite record of committed ledger
// ticks and simulation events.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/canopy/ledger"
	"github.com/pthm-cable/canopy/telemetry"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("journal closed")

// Journal appends ledger records and events to SQLite. Events passed to
// Emit are buffered and written with the next tick in one transaction.
type Journal struct {
	db *sql.DB

	mu      sync.Mutex
	pending []telemetry.Event
	closed  bool
}

// OpenSQLite opens or creates the journal at path. ":memory:" is accepted.
func OpenSQLite(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			opening_eur TEXT NOT NULL,
			closing_eur TEXT NOT NULL,
			energy_eur TEXT NOT NULL,
			energy_kwh TEXT NOT NULL,
			water_l TEXT NOT NULL,
			maintenance_eur TEXT NOT NULL,
			capex_eur TEXT NOT NULL,
			other_expense_eur TEXT NOT NULL,
			revenue_eur TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ticks_tick ON ticks(tick);`,
		`CREATE TABLE IF NOT EXISTS entries (
			record_id INTEGER NOT NULL REFERENCES ticks(id),
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			category TEXT NOT NULL,
			amount_eur TEXT NOT NULL,
			quantity TEXT NOT NULL,
			unit TEXT NOT NULL,
			source TEXT NOT NULL,
			PRIMARY KEY (record_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			type TEXT NOT NULL,
			zone TEXT NOT NULL,
			entity TEXT NOT NULL,
			blueprint TEXT NOT NULL,
			from_value TEXT NOT NULL,
			to_value TEXT NOT NULL,
			cause TEXT NOT NULL,
			count INTEGER NOT NULL,
			amount REAL NOT NULL,
			value REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS events_tick ON events(tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// Emit buffers an event until the next WriteTick.
func (j *Journal) Emit(e telemetry.Event) {
	if e.Type == telemetry.EventDailySummary {
		return
	}
	j.mu.Lock()
	j.pending = append(j.pending, e)
	j.mu.Unlock()
}

// WriteTick appends a committed record, its entries and the buffered
// events in one transaction.
func (j *Journal) WriteTick(ctx context.Context, rec ledger.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	t := rec.Totals
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ticks (tick, opening_eur, closing_eur, energy_eur, energy_kwh, water_l,
			maintenance_eur, capex_eur, other_expense_eur, revenue_eur)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Tick, rec.OpeningBalance.String(), rec.ClosingBalance.String(),
		t.Energy.String(), t.EnergyKWh.String(), t.WaterL.String(),
		t.Maintenance.String(), t.Capex.String(), t.OtherExpense.String(), t.Revenue.String(),
	)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", rec.Tick, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if len(rec.Entries) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO entries (record_id, tick, seq, category, amount_eur, quantity, unit, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range rec.Entries {
			if _, err := stmt.ExecContext(ctx, id, e.Tick, e.Seq, string(e.Category),
				e.Amount.String(), e.Quantity.String(), e.Unit, e.Source); err != nil {
				return fmt.Errorf("insert entry %d/%d: %w", rec.Tick, e.Seq, err)
			}
		}
	}

	for _, e := range j.pending {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	j.pending = j.pending[:0]
	return nil
}

// WriteEvent appends one event immediately.
func (j *Journal) WriteEvent(ctx context.Context, e telemetry.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return insertEvent(ctx, j.db, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, e telemetry.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (tick, type, zone, entity, blueprint, from_value, to_value, cause, count, amount, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Tick, e.Type.String(), e.Zone, e.EntityID, e.Blueprint, e.From, e.To, e.Cause, e.Count, e.Amount, e.Value,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Type, err)
	}
	return nil
}

// Ticks reads back every journaled record in insertion order, without
// entries.
func (j *Journal) Ticks(ctx context.Context) ([]ledger.Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT tick, opening_eur, closing_eur, energy_eur, energy_kwh, water_l,
			maintenance_eur, capex_eur, other_expense_eur, revenue_eur
		FROM ticks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		var cols [9]string
		if err := rows.Scan(&rec.Tick, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4],
			&cols[5], &cols[6], &cols[7], &cols[8]); err != nil {
			return nil, err
		}
		dst := []*decimal.Decimal{
			&rec.OpeningBalance, &rec.ClosingBalance,
			&rec.Totals.Energy, &rec.Totals.EnergyKWh, &rec.Totals.WaterL,
			&rec.Totals.Maintenance, &rec.Totals.Capex, &rec.Totals.OtherExpense, &rec.Totals.Revenue,
		}
		for i, s := range cols {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("tick %d column %d: %w", rec.Tick, i, err)
			}
			*dst[i] = d
		}
		rec.Committed = true
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Entries reads back the itemized entries journaled for tick.
func (j *Journal) Entries(ctx context.Context, tick int) ([]ledger.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT tick, seq, category, amount_eur, quantity, unit, source
		FROM entries WHERE tick = ? ORDER BY record_id, seq`, tick)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var cat, amount, qty string
		if err := rows.Scan(&e.Tick, &e.Seq, &cat, &amount, &qty, &e.Unit, &e.Source); err != nil {
			return nil, err
		}
		e.Category = ledger.Category(cat)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if e.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventCounts returns the number of journaled events per type name.
func (j *Journal) EventCounts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// Close closes the database. Buffered events that were never followed by
// a tick are dropped.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	j.pending = nil
	return j.db.Close()
}

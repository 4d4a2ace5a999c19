// Package persistence provides SQLite-based planner session storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/session"
)

// ErrNotFound is returned when no session is stored under an id.
var ErrNotFound = errors.New("session not found")

// DB wraps a SQLite connection for planner state persistence.
type DB struct {
	conn *sqlx.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{
		conn:    conn,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) newID() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), db.entropy).String()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		cycle INTEGER NOT NULL,
		day INTEGER NOT NULL,
		groove INTEGER NOT NULL,
		max_groove INTEGER NOT NULL,
		bonus INTEGER NOT NULL,
		gross REAL NOT NULL,
		net REAL NOT NULL,
		state_json TEXT NOT NULL,
		inventory_json TEXT NOT NULL,
		pending_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hints (
		session_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		strong INTEGER NOT NULL,
		PRIMARY KEY (session_id, item_id)
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		day INTEGER NOT NULL,
		combo_key TEXT NOT NULL,
		gross REAL NOT NULL,
		net REAL NOT NULL,
		groove INTEGER NOT NULL,
		cumulative_gross REAL NOT NULL,
		cumulative_net REAL NOT NULL,
		stub INTEGER NOT NULL,
		lines_json TEXT NOT NULL,
		committed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		day INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS planner_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_session ON summaries(session_id, cycle, day);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type sessionRow struct {
	ID            string  `db:"id"`
	Cycle         int     `db:"cycle"`
	Day           int     `db:"day"`
	Groove        int     `db:"groove"`
	MaxGroove     int     `db:"max_groove"`
	Bonus         int     `db:"bonus"`
	Gross         float64 `db:"gross"`
	Net           float64 `db:"net"`
	StateJSON     string  `db:"state_json"`
	InventoryJSON string  `db:"inventory_json"`
	PendingJSON   string  `db:"pending_json"`
	UpdatedAt     string  `db:"updated_at"`
}

type summaryRow struct {
	ID              string  `db:"id"`
	SessionID       string  `db:"session_id"`
	Cycle           int     `db:"cycle"`
	Day             int     `db:"day"`
	Key             string  `db:"combo_key"`
	Gross           float64 `db:"gross"`
	Net             float64 `db:"net"`
	Groove          int     `db:"groove"`
	CumulativeGross float64 `db:"cumulative_gross"`
	CumulativeNet   float64 `db:"cumulative_net"`
	Stub            bool    `db:"stub"`
	LinesJSON       string  `db:"lines_json"`
	CommittedAt     string  `db:"committed_at"`
}

// Event is one entry of the session activity log.
type Event struct {
	ID          string `db:"id" json:"id"`
	SessionID   string `db:"session_id" json:"session_id"`
	Cycle       int    `db:"cycle" json:"cycle"`
	Day         int    `db:"day" json:"day"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
}

// SaveSession writes the full session record. Summaries of the record's
// cycle are replaced; earlier cycles are kept as history.
func (db *DB) SaveSession(rec session.Record) error {
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encode market state: %w", err)
	}
	invJSON, _ := json.Marshal(rec.Inventory)
	pendingJSON, _ := json.Marshal(rec.Pending)
	id := rec.ID.String()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(id, cycle, day, groove, max_groove, bonus, gross, net,
		 state_json, inventory_json, pending_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Cycle, rec.Day, rec.Groove, rec.MaxGroove, rec.Bonus, rec.Gross, rec.Net,
		string(stateJSON), string(invJSON), string(pendingJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", id, err)
	}

	if _, err := tx.Exec("DELETE FROM hints WHERE session_id = ?", id); err != nil {
		return err
	}
	for item, strong := range rec.Hints {
		if _, err := tx.Exec("INSERT INTO hints (session_id, item_id, strong) VALUES (?, ?, ?)", id, int(item), strong); err != nil {
			return fmt.Errorf("insert hint %d: %w", item, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM summaries WHERE session_id = ? AND cycle = ?", id, rec.Cycle); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO summaries
		(id, session_id, cycle, day, combo_key, gross, net, groove,
		 cumulative_gross, cumulative_net, stub, lines_json, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rec.Summaries {
		linesJSON, _ := json.Marshal(s.Lines)
		_, err := stmt.Exec(
			db.newID(), id, rec.Cycle, s.Day, s.Key, s.Gross, s.Net, s.Groove,
			s.CumulativeGross, s.CumulativeNet, s.Stub, string(linesJSON),
			s.CommittedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert summary day %d: %w", s.Day, err)
		}
	}

	return tx.Commit()
}

// LoadSession reads a session record by id.
func (db *DB) LoadSession(id uuid.UUID) (session.Record, error) {
	var row sessionRow
	err := db.conn.Get(&row, "SELECT * FROM sessions WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("load session %s: %w", id, err)
	}

	rec := session.Record{
		ID:        id,
		Cycle:     row.Cycle,
		Day:       row.Day,
		Groove:    row.Groove,
		MaxGroove: row.MaxGroove,
		Bonus:     row.Bonus,
		Gross:     row.Gross,
		Net:       row.Net,
	}
	if err := json.Unmarshal([]byte(row.StateJSON), &rec.State); err != nil {
		return session.Record{}, fmt.Errorf("decode market state: %w", err)
	}
	if err := json.Unmarshal([]byte(row.InventoryJSON), &rec.Inventory); err != nil {
		return session.Record{}, fmt.Errorf("decode inventory: %w", err)
	}
	if err := json.Unmarshal([]byte(row.PendingJSON), &rec.Pending); err != nil {
		return session.Record{}, fmt.Errorf("decode pending hints: %w", err)
	}

	if rec.Hints, err = db.LoadHints(id); err != nil {
		return session.Record{}, err
	}
	if rec.Summaries, err = db.CycleSummaries(id, row.Cycle); err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

// LoadHints returns the recorded demand-cycle hints of a session.
func (db *DB) LoadHints(id uuid.UUID) (market.Hints, error) {
	var rows []struct {
		ItemID int  `db:"item_id"`
		Strong bool `db:"strong"`
	}
	if err := db.conn.Select(&rows, "SELECT item_id, strong FROM hints WHERE session_id = ?", id.String()); err != nil {
		return nil, fmt.Errorf("load hints: %w", err)
	}
	hints := make(market.Hints, len(rows))
	for _, r := range rows {
		hints[catalog.ItemID(r.ItemID)] = r.Strong
	}
	return hints, nil
}

// CycleSummaries returns the summaries of one cycle in day order.
func (db *DB) CycleSummaries(id uuid.UUID, cycle int) ([]session.Summary, error) {
	var rows []summaryRow
	err := db.conn.Select(&rows,
		"SELECT * FROM summaries WHERE session_id = ? AND cycle = ? ORDER BY day",
		id.String(), cycle,
	)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	out := make([]session.Summary, 0, len(rows))
	for _, r := range rows {
		s := session.Summary{
			Day:             r.Day,
			Key:             r.Key,
			Gross:           r.Gross,
			Net:             r.Net,
			Groove:          r.Groove,
			CumulativeGross: r.CumulativeGross,
			CumulativeNet:   r.CumulativeNet,
			Stub:            r.Stub,
		}
		var lines []evaluate.Line
		if err := json.Unmarshal([]byte(r.LinesJSON), &lines); err != nil {
			return nil, fmt.Errorf("decode summary lines: %w", err)
		}
		s.Lines = lines
		if t, err := time.Parse(time.RFC3339Nano, r.CommittedAt); err == nil {
			s.CommittedAt = t
		}
		out = append(out, s)
	}
	return out, nil
}

// LogEvent appends an entry to the activity log.
func (db *DB) LogEvent(id uuid.UUID, cycle, day int, category, description string) error {
	_, err := db.conn.Exec(
		"INSERT INTO events (id, session_id, cycle, day, description, category) VALUES (?, ?, ?, ?, ?, ?)",
		db.newID(), id.String(), cycle, day, description, category,
	)
	return err
}

// RecentEvents returns the most recent N events of a session, newest first.
func (db *DB) RecentEvents(id uuid.UUID, limit int) ([]Event, error) {
	var events []Event
	err := db.conn.Select(&events,
		"SELECT id, session_id, cycle, day, description, category FROM events WHERE session_id = ? ORDER BY id DESC LIMIT ?",
		id.String(), limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in planner metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO planner_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM planner_meta WHERE key = ?", key)
	return value, err
}

// CurrentSession returns the id of the last active session, if any.
func (db *DB) CurrentSession() (uuid.UUID, bool) {
	v, err := db.GetMeta("current_session")
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		slog.Warn("invalid current_session meta", "value", v, "error", err)
		return uuid.Nil, false
	}
	return id, true
}

// SetCurrentSession marks id as the active session.
func (db *DB) SetCurrentSession(id uuid.UUID) error {
	return db.SaveMeta("current_session", id.String())
}

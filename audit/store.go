package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed index over audit Records, keyed by run and by identity, so a later
// pass (C7's validation ledger, or an operator asking "what happened to pid 1234") doesn't need to
// scan the whole JSON-lines log. The JSON-lines file written by Writer remains the durable,
// portable audit trail (spec §6); Store is a query accelerator over it, following the same
// sqlite-as-index idiom as policy/ratelimiter.go and validation/store.go.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the audit index at dbPath. An empty dbPath uses an
// in-memory database.
func OpenStore(dbPath string) (*Store, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	pid INTEGER NOT NULL,
	start_time_ticks INTEGER NOT NULL,
	host_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	action INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_records (run_id);
CREATE INDEX IF NOT EXISTS idx_audit_identity ON audit_records (pid, start_time_ticks, host_id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Index records r in the query index. Callers typically call this alongside Writer.Write so the
// JSON-lines log and the index stay in sync.
func (s *Store) Index(r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	_, err = s.db.Exec(`
INSERT INTO audit_records (run_id, pid, start_time_ticks, host_id, timestamp, action, outcome, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Identity.PID, r.Identity.StartTimeTicks, r.Identity.HostID,
		r.Timestamp.Unix(), int(r.Action), r.Outcome, string(payload))
	if err != nil {
		return fmt.Errorf("index audit record: %w", err)
	}
	return nil
}

// FindByRun returns every record for one run, in insertion order.
func (s *Store) FindByRun(runID string) ([]Record, error) {
	return s.query(`WHERE run_id = ? ORDER BY id ASC`, runID)
}

// FindByIdentity returns every record for one process identity, in insertion order (i.e. attempt
// order, per spec §5) across all runs that ever touched that identity.
func (s *Store) FindByIdentity(pid int, startTimeTicks uint64, hostID string) ([]Record, error) {
	return s.query(`WHERE pid = ? AND start_time_ticks = ? AND host_id = ? ORDER BY id ASC`,
		pid, startTimeTicks, hostID)
}

func (s *Store) query(where string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT payload FROM audit_records %s`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		var r Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshal audit record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

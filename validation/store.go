// Package validation implements C7: the validation ledger. It pairs predictions made by the
// decision pipeline with the ground-truth outcomes those processes eventually have, and computes
// calibration metrics, bias, and prior/threshold recommendations from the resolved pairs (spec
// §4.7). Grounded on original_source/pt-core/src/calibrate/validation.rs's ValidationEngine; the
// in-memory Vec<ValidationRecord> there becomes a sqlite-backed store here so the ledger survives
// daemon restarts, following the persistence idiom already established in policy/ratelimiter.go.
package validation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/proctriage/triage/model"

	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed validation ledger: every tracked prediction, resolved or pending.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the validation ledger at dbPath. An empty dbPath uses an
// in-memory database, useful for tests and for shadow-mode replays that never need to persist.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open validation store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS validation_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identity_hash TEXT NOT NULL,
	pid INTEGER NOT NULL,
	predicted_abandoned REAL NOT NULL,
	recommended_action INTEGER NOT NULL,
	proc_type TEXT NOT NULL DEFAULT '',
	comm TEXT NOT NULL,
	predicted_at INTEGER NOT NULL,
	ground_truth INTEGER,
	resolved_at INTEGER,
	exit_code INTEGER,
	exit_signal INTEGER,
	outcome_source TEXT NOT NULL DEFAULT '',
	host_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_validation_identity ON validation_records (identity_hash);
CREATE INDEX IF NOT EXISTS idx_validation_pid ON validation_records (pid);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init validation schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Track records a new prediction. Mirrors ValidationEngine::track_prediction.
func (s *Store) Track(r model.ValidationRecord) error {
	_, err := s.db.Exec(`
INSERT INTO validation_records
	(identity_hash, pid, predicted_abandoned, recommended_action, proc_type, comm, predicted_at, host_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.IdentityHash, r.PID, r.PredictedAbandoned, int(r.RecommendedAction), r.ProcType, r.Comm,
		r.PredictedAt.Unix(), r.HostID)
	if err != nil {
		return fmt.Errorf("track prediction: %w", err)
	}
	return nil
}

// ResolveByIdentity resolves the most recent unresolved record for identityHash with a ground
// truth outcome. Returns false if no unresolved record exists for that identity (spec §4.7: "the
// most recent unresolved record for that identity").
func (s *Store) ResolveByIdentity(identityHash string, gt model.GroundTruth, exitCode, exitSignal *int, source string) (bool, error) {
	return s.resolveWhere(`identity_hash = ? AND ground_truth IS NULL`, []any{identityHash}, gt, exitCode, exitSignal, source)
}

// ResolveByPID resolves the most recent unresolved record for pid. Fallback path: PIDs can be
// reused, so this is less reliable than ResolveByIdentity and should only be used when an
// identity hash is unavailable.
func (s *Store) ResolveByPID(pid int, gt model.GroundTruth, exitCode, exitSignal *int, source string) (bool, error) {
	return s.resolveWhere(`pid = ? AND ground_truth IS NULL`, []any{pid}, gt, exitCode, exitSignal, source)
}

func (s *Store) resolveWhere(where string, args []any, gt model.GroundTruth, exitCode, exitSignal *int, source string) (bool, error) {
	var id int64
	query := fmt.Sprintf(`SELECT id FROM validation_records WHERE %s ORDER BY id DESC LIMIT 1`, where)
	row := s.db.QueryRow(query, args...)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("find unresolved record: %w", err)
	}

	_, err := s.db.Exec(`
UPDATE validation_records
SET ground_truth = ?, resolved_at = ?, exit_code = ?, exit_signal = ?, outcome_source = CASE WHEN ? <> '' THEN ? ELSE outcome_source END
WHERE id = ?`,
		int(gt), time.Now().Unix(), nullableInt(exitCode), nullableInt(exitSignal), source, source, id)
	if err != nil {
		return false, fmt.Errorf("resolve record: %w", err)
	}
	return true, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// HasUnresolvedIdentity reports whether identityHash has a pending (unresolved) prediction.
// Used by shadow-mode ingestion to decide whether an exit event resolves an existing prediction
// or must first synthesize one from the surrounding events (ValidationEngine::upsert_prediction).
func (s *Store) HasUnresolvedIdentity(identityHash string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM validation_records WHERE identity_hash = ? AND ground_truth IS NULL`, identityHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check unresolved identity: %w", err)
	}
	return n > 0, nil
}

// Upsert updates the most recent unresolved record for identityHash in place, or inserts a new
// one if none exists. Used by shadow-mode ingestion, where a prediction synthesized from earlier
// events in the same observation stream may need amending before its exit event arrives.
func (s *Store) Upsert(r model.ValidationRecord) error {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM validation_records WHERE identity_hash = ? AND ground_truth IS NULL ORDER BY id DESC LIMIT 1`, r.IdentityHash).Scan(&id)
	if err == sql.ErrNoRows {
		return s.Track(r)
	}
	if err != nil {
		return fmt.Errorf("upsert lookup: %w", err)
	}
	_, err = s.db.Exec(`
UPDATE validation_records
SET pid = ?, predicted_abandoned = ?, recommended_action = ?, proc_type = ?, comm = ?, predicted_at = ?, host_id = ?
WHERE id = ?`,
		r.PID, r.PredictedAbandoned, int(r.RecommendedAction), r.ProcType, r.Comm, r.PredictedAt.Unix(), r.HostID, id)
	if err != nil {
		return fmt.Errorf("upsert update: %w", err)
	}
	return nil
}

// Records returns every tracked prediction, resolved or not.
func (s *Store) Records() ([]model.ValidationRecord, error) {
	return s.query(``)
}

// Resolved returns only predictions with a resolved (non-pending) ground truth.
func (s *Store) Resolved() ([]model.ValidationRecord, error) {
	return s.query(`WHERE ground_truth IS NOT NULL`)
}

// Pending returns only predictions awaiting a ground truth.
func (s *Store) Pending() ([]model.ValidationRecord, error) {
	return s.query(`WHERE ground_truth IS NULL`)
}

func (s *Store) query(where string) ([]model.ValidationRecord, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
SELECT identity_hash, pid, predicted_abandoned, recommended_action, proc_type, comm, predicted_at,
       ground_truth, resolved_at, exit_code, exit_signal, outcome_source, host_id
FROM validation_records %s ORDER BY id ASC`, where))
	if err != nil {
		return nil, fmt.Errorf("query validation records: %w", err)
	}
	defer rows.Close()

	var out []model.ValidationRecord
	for rows.Next() {
		var r model.ValidationRecord
		var predictedAt int64
		var recommendedAction int
		var groundTruth, resolvedAt, exitCode, exitSignal sql.NullInt64
		if err := rows.Scan(&r.IdentityHash, &r.PID, &r.PredictedAbandoned, &recommendedAction,
			&r.ProcType, &r.Comm, &predictedAt, &groundTruth, &resolvedAt, &exitCode, &exitSignal,
			&r.OutcomeSource, &r.HostID); err != nil {
			return nil, fmt.Errorf("scan validation record: %w", err)
		}
		r.RecommendedAction = model.Action(recommendedAction)
		r.PredictedAt = time.Unix(predictedAt, 0).UTC()
		if groundTruth.Valid {
			gt := model.GroundTruth(groundTruth.Int64)
			r.GroundTruth = &gt
		}
		if resolvedAt.Valid {
			t := time.Unix(resolvedAt.Int64, 0).UTC()
			r.ResolvedAt = &t
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			r.ExitCode = &v
		}
		if exitSignal.Valid {
			v := int(exitSignal.Int64)
			r.ExitSignal = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

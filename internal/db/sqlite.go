package db

import (
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// DB wraps the save-data store: per-night results, the persistent
// flag carry-over between nights, and mid-session snapshots.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewDB opens the database and runs migrations
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS night_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id TEXT NOT NULL,
		night_id TEXT NOT NULL,
		end_state TEXT NOT NULL,
		ending_id TEXT NOT NULL,
		survived INTEGER NOT NULL,
		completed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS persistent_flags (
		profile_id TEXT NOT NULL,
		flag_id TEXT NOT NULL,
		is_set INTEGER NOT NULL,
		set_minute INTEGER NOT NULL,
		PRIMARY KEY (profile_id, flag_id)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		profile_id TEXT NOT NULL,
		night_id TEXT NOT NULL,
		snapshot_json TEXT NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (profile_id, night_id)
	);

	CREATE INDEX IF NOT EXISTS idx_night_results_profile ON night_results(profile_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveNightResult appends a completed night's outcome
func (db *DB) SaveNightResult(profileID string, result scenario.NightResult) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO night_results (profile_id, night_id, end_state, ending_id, survived, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, profileID, result.NightID, result.EndState, result.EndingID, boolToInt(result.Survived), result.CompletedAt)
	return err
}

// GetNightResults returns a profile's completed nights, oldest first
func (db *DB) GetNightResults(profileID string) ([]scenario.NightResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT night_id, end_state, ending_id, survived, completed_at
		FROM night_results
		WHERE profile_id = ?
		ORDER BY completed_at ASC
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []scenario.NightResult
	for rows.Next() {
		var r scenario.NightResult
		var survived int
		if err := rows.Scan(&r.NightID, &r.EndState, &r.EndingID, &survived, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Survived = intToBool(survived)
		results = append(results, r)
	}
	return results, rows.Err()
}

// SavePersistentFlags replaces a profile's carry-over flag states
func (db *DB) SavePersistentFlags(profileID string, records []scenario.FlagStateRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM persistent_flags WHERE profile_id = ?`, profileID); err != nil {
		return err
	}
	for _, rec := range records {
		_, err := tx.Exec(`
			INSERT INTO persistent_flags (profile_id, flag_id, is_set, set_minute)
			VALUES (?, ?, ?, ?)
		`, profileID, rec.FlagID, boolToInt(rec.IsSet), rec.SetMinute)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPersistentFlags loads a profile's carry-over flag states
func (db *DB) GetPersistentFlags(profileID string) ([]scenario.FlagStateRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT flag_id, is_set, set_minute FROM persistent_flags WHERE profile_id = ?
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []scenario.FlagStateRecord
	for rows.Next() {
		var rec scenario.FlagStateRecord
		var isSet int
		if err := rows.Scan(&rec.FlagID, &isSet, &rec.SetMinute); err != nil {
			return nil, err
		}
		rec.IsSet = intToBool(isSet)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveSnapshot upserts a profile's mid-session snapshot for a night
func (db *DB) SaveSnapshot(profileID string, snap scenario.Snapshot) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(`
		INSERT INTO snapshots (profile_id, night_id, snapshot_json, saved_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile_id, night_id) DO UPDATE SET
			snapshot_json = excluded.snapshot_json,
			saved_at = CURRENT_TIMESTAMP
	`, profileID, snap.NightID, string(data))
	return err
}

// LoadSnapshot returns a stored snapshot, sql.ErrNoRows when absent
func (db *DB) LoadSnapshot(profileID, nightID string) (*scenario.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var data string
	err := db.conn.QueryRow(`
		SELECT snapshot_json FROM snapshots WHERE profile_id = ? AND night_id = ?
	`, profileID, nightID).Scan(&data)
	if err != nil {
		return nil, err
	}

	var snap scenario.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteSnapshot removes a stored snapshot
func (db *DB) DeleteSnapshot(profileID, nightID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		DELETE FROM snapshots WHERE profile_id = ? AND night_id = ?
	`, profileID, nightID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

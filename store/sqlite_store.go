package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vigil/enforce"
	"vigil/scoring"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, err
	}
	st := &SQLiteStore{db: db}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS days (
			date TEXT PRIMARY KEY,
			submitted INTEGER NOT NULL,
			score INTEGER NOT NULL,
			multiplier REAL NOT NULL,
			penalty_points INTEGER NOT NULL,
			missed_checks INTEGER NOT NULL,
			tasks TEXT NOT NULL,
			orgasm_recorded INTEGER NOT NULL,
			orgasm_proof_id TEXT NOT NULL,
			remedial_required INTEGER NOT NULL,
			punishment TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			score INTEGER NOT NULL,
			feedback TEXT NOT NULL,
			multiplier REAL NOT NULL,
			missed_checks INTEGER NOT NULL,
			punishment TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS proofs (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			streak INTEGER NOT NULL,
			lock_until TEXT NOT NULL,
			last_trigger TEXT NOT NULL,
			last_active TEXT NOT NULL,
			weekly_review_seen TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDay(d enforce.DayRecord) error {
	tasks, err := json.Marshal(d.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO days
		(date, submitted, score, multiplier, penalty_points, missed_checks, tasks, orgasm_recorded, orgasm_proof_id, remedial_required, punishment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Date,
		boolToInt(d.Submitted),
		d.Score,
		d.Multiplier,
		d.PenaltyPoints,
		d.MissedLoyaltyChecks,
		string(tasks),
		boolToInt(d.OrgasmRecorded),
		d.OrgasmProofID,
		boolToInt(d.RemedialProofRequired),
		d.Punishment,
	)
	return err
}

func (s *SQLiteStore) LoadDay(date string) (enforce.DayRecord, bool, error) {
	row := s.db.QueryRow(`
		SELECT date, submitted, score, multiplier, penalty_points, missed_checks, tasks, orgasm_recorded, orgasm_proof_id, remedial_required, punishment
		FROM days
		WHERE date = ?`,
		date,
	)
	var d enforce.DayRecord
	var submitted, orgasm, remedial int
	var tasks string
	err := row.Scan(
		&d.Date,
		&submitted,
		&d.Score,
		&d.Multiplier,
		&d.PenaltyPoints,
		&d.MissedLoyaltyChecks,
		&tasks,
		&orgasm,
		&d.OrgasmProofID,
		&remedial,
		&d.Punishment,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return enforce.DayRecord{}, false, nil
	}
	if err != nil {
		return enforce.DayRecord{}, false, err
	}
	d.Submitted = intToBool(submitted)
	d.OrgasmRecorded = intToBool(orgasm)
	d.RemedialProofRequired = intToBool(remedial)
	d.Tasks = make(map[scoring.TaskID]scoring.Task)
	if err := json.Unmarshal([]byte(tasks), &d.Tasks); err != nil {
		// Damaged task blob: Sanitize upstream repairs the nil map.
		d.Tasks = nil
	}
	return d, true, nil
}

func (s *SQLiteStore) AppendHistory(item enforce.HistoryItem) error {
	_, err := s.db.Exec(`
		INSERT INTO history
		(date, score, feedback, multiplier, missed_checks, punishment)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.Date,
		item.Score,
		string(item.Feedback),
		item.Multiplier,
		item.MissedLoyaltyChecks,
		item.Punishment,
	)
	return err
}

func (s *SQLiteStore) History() ([]enforce.HistoryItem, error) {
	rows, err := s.db.Query(`
		SELECT date, score, feedback, multiplier, missed_checks, punishment
		FROM history
		ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []enforce.HistoryItem
	for rows.Next() {
		var item enforce.HistoryItem
		var feedback string
		if err := rows.Scan(
			&item.Date,
			&item.Score,
			&feedback,
			&item.Multiplier,
			&item.MissedLoyaltyChecks,
			&item.Punishment,
		); err != nil {
			return nil, err
		}
		item.Feedback = scoring.Tier(feedback)
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) SaveProof(id string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO proofs (id, data, created_at)
		VALUES (?, ?, ?)`,
		id, data, toTS(time.Now()),
	)
	return err
}

func (s *SQLiteStore) LoadProof(id string) ([]byte, bool, error) {
	row := s.db.QueryRow(`SELECT data FROM proofs WHERE id = ?`, id)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLiteStore) SaveState(st enforce.State) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO state
		(id, streak, lock_until, last_trigger, last_active, weekly_review_seen)
		VALUES (1, ?, ?, ?, ?, ?)`,
		st.Streak,
		toTS(st.LockUntil),
		toTS(st.LastTrigger),
		toTS(st.LastActive),
		st.WeeklyReviewSeen,
	)
	return err
}

func (s *SQLiteStore) LoadState() (enforce.State, bool, error) {
	row := s.db.QueryRow(`
		SELECT streak, lock_until, last_trigger, last_active, weekly_review_seen
		FROM state
		WHERE id = 1`)
	var st enforce.State
	var lockUntil, lastTrigger, lastActive string
	err := row.Scan(&st.Streak, &lockUntil, &lastTrigger, &lastActive, &st.WeeklyReviewSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return enforce.State{}, false, nil
	}
	if err != nil {
		return enforce.State{}, false, err
	}
	st.LockUntil = fromTS(lockUntil)
	st.LastTrigger = fromTS(lastTrigger)
	st.LastActive = fromTS(lastActive)
	return st, true, nil
}

func toTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func fromTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
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

package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed record history, so repeated verification
// runs over the same tasks stay comparable.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	// An empty DSN would open a throwaway in-memory database and
	// silently lose every record on exit.
	if dbPath == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecord inserts or replaces a finalized record under a run ID.
func (s *Store) SaveRecord(runID string, rec *Record) error {
	notesJSON, err := json.Marshal(rec.Notes)
	if err != nil {
		return err
	}
	logsJSON, err := json.Marshal(rec.Logs)
	if err != nil {
		return err
	}

	var exitCode sql.NullInt64
	if rec.TestExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*rec.TestExitCode), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO records (run_id, task_id, image_tag, repo_dir, build_ok, agent_patch_ok, test_patch_ok, test_ok, test_exit_code, skipped, skip_reason, notes, logs, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_id) DO UPDATE SET
			image_tag = excluded.image_tag,
			repo_dir = excluded.repo_dir,
			build_ok = excluded.build_ok,
			agent_patch_ok = excluded.agent_patch_ok,
			test_patch_ok = excluded.test_patch_ok,
			test_ok = excluded.test_ok,
			test_exit_code = excluded.test_exit_code,
			skipped = excluded.skipped,
			skip_reason = excluded.skip_reason,
			notes = excluded.notes,
			logs = excluded.logs,
			recorded_at = excluded.recorded_at
	`,
		runID,
		rec.TaskID,
		rec.ImageTag,
		rec.RepoDir,
		rec.BuildOK,
		rec.AgentPatchOK,
		rec.TestPatchOK,
		rec.TestOK,
		exitCode,
		rec.Skipped,
		rec.SkipReason,
		string(notesJSON),
		string(logsJSON),
		time.Now(),
	)
	return err
}

// LatestPerTask returns the most recently recorded record for each task
// ID, ordered by task ID.
func (s *Store) LatestPerTask() ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT task_id, image_tag, repo_dir, build_ok, agent_patch_ok, test_patch_ok, test_ok, test_exit_code, skipped, skip_reason, notes, logs
		FROM records r
		WHERE recorded_at = (SELECT MAX(recorded_at) FROM records WHERE task_id = r.task_id)
		GROUP BY task_id
		ORDER BY task_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListRun returns all records of one run, ordered by task ID.
func (s *Store) ListRun(runID string) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT task_id, image_tag, repo_dir, build_ok, agent_patch_ok, test_patch_ok, test_ok, test_exit_code, skipped, skip_reason, notes, logs
		FROM records
		WHERE run_id = ?
		ORDER BY task_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		var exitCode sql.NullInt64
		var notesJSON, logsJSON string

		err := rows.Scan(
			&rec.TaskID,
			&rec.ImageTag,
			&rec.RepoDir,
			&rec.BuildOK,
			&rec.AgentPatchOK,
			&rec.TestPatchOK,
			&rec.TestOK,
			&exitCode,
			&rec.Skipped,
			&rec.SkipReason,
			&notesJSON,
			&logsJSON,
		)
		if err != nil {
			return nil, err
		}

		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.TestExitCode = &code
		}
		if err := json.Unmarshal([]byte(notesJSON), &rec.Notes); err != nil {
			return nil, fmt.Errorf("decoding notes for %s: %w", rec.TaskID, err)
		}
		if err := json.Unmarshal([]byte(logsJSON), &rec.Logs); err != nil {
			return nil, fmt.Errorf("decoding logs for %s: %w", rec.TaskID, err)
		}

		records = append(records, &rec)
	}
	return records, rows.Err()
}
